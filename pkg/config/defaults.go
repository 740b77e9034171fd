package config

import "github.com/spf13/viper"

// Default pipeline parameters. The band shape targets a Jaccard threshold
// of 0.8 over 255 permutations.
const (
	DefaultBatchSize              = 20000
	DefaultNumBands               = 17
	DefaultBandWidth              = 15
	DefaultWindowSize             = 3
	DefaultJaccardThreshold       = 0.8
	DefaultNumDuplicatesThreshold = 1000
	DefaultTokenizer              = "whitespace"
	DefaultCompressionLevel       = 3
	DefaultShardSize              = "1G"
	DefaultZstdWorkers            = 4
	DefaultChannelCapacity        = 100000
)

// setDefaults seeds viper with every default value.
func setDefaults(v *viper.Viper) {
	v.SetDefault("index.batch_size", DefaultBatchSize)
	v.SetDefault("index.num_bands", DefaultNumBands)
	v.SetDefault("index.band_width", DefaultBandWidth)
	v.SetDefault("index.window_size", DefaultWindowSize)
	v.SetDefault("index.jaccard_threshold", DefaultJaccardThreshold)
	v.SetDefault("index.num_duplicates_threshold", DefaultNumDuplicatesThreshold)
	v.SetDefault("index.tokenizer", DefaultTokenizer)
	v.SetDefault("index.compression_level", DefaultCompressionLevel)
	v.SetDefault("exact.shard_size", DefaultShardSize)
	v.SetDefault("exact.compression_level", DefaultCompressionLevel)
	v.SetDefault("exact.zstd_workers", DefaultZstdWorkers)
	v.SetDefault("exact.channel_capacity", DefaultChannelCapacity)
}
