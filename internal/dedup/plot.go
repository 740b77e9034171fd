package dedup

import (
	"fmt"
	"io"
	"math/bits"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// plotChartHeight sizes the rendered histogram.
const plotChartHeight = "400px"

// WriteClusterHistogram renders an HTML bar chart of the duplicate
// cluster size distribution. Sizes are grouped into power-of-two buckets;
// singleton clusters are the leftmost bar.
func (f *Filter) WriteClusterHistogram(w io.Writer) error {
	sizes := f.sizes
	if sizes == nil {
		f.uf.Flatten()
		sizes = f.uf.ClusterSizes()
	}

	// bucketCounts[b] counts clusters whose size has bit length b+1.
	var bucketCounts []int

	for i, size := range sizes {
		if int(f.uf.Parents()[i]) != i {
			continue
		}

		bucket := bits.Len32(size) - 1
		for len(bucketCounts) <= bucket {
			bucketCounts = append(bucketCounts, 0)
		}

		bucketCounts[bucket]++
	}

	labels := make([]string, len(bucketCounts))
	bars := make([]opts.BarData, len(bucketCounts))

	for b, count := range bucketCounts {
		low := 1 << b
		high := 1<<(b+1) - 1

		if low == high {
			labels[b] = fmt.Sprintf("%d", low)
		} else {
			labels[b] = fmt.Sprintf("%d-%d", low, high)
		}

		bars[b] = opts.BarData{Value: count}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Cluster Size Distribution",
			Subtitle: "Number of duplicate clusters per size bucket",
		}),
		charts.WithInitializationOpts(opts.Initialization{Height: plotChartHeight}),
		charts.WithXAxisOpts(opts.XAxis{Name: "cluster size"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "clusters"}),
	)

	bar.SetXAxis(labels).AddSeries("clusters", bars)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("dedup: render histogram: %w", err)
	}

	return nil
}
