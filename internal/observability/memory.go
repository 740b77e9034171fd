package observability

import (
	"bufio"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

const (
	// procStatusPath is where the kernel reports per-process memory peaks.
	procStatusPath = "/proc/self/status"

	// vmHWMPrefix is the status line carrying the peak resident set size.
	vmHWMPrefix = "VmHWM:"

	// kibPerGiB converts the kernel's kB figure to GB for reporting.
	kibPerGiB = 1e6
)

// LogPeakMemory reports the process's peak resident set size at the end of
// a run. A probe failure is only a warning: the report is informational
// and must never fail the pipeline.
func LogPeakMemory(logger *slog.Logger) {
	file, err := os.Open(procStatusPath)
	if err != nil {
		logger.Warn("could not obtain memory usage", "error", err)

		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, vmHWMPrefix) {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}

		kb, parseErr := strconv.ParseFloat(fields[1], 64)
		if parseErr != nil {
			break
		}

		logger.Info("peak memory used", "gb", kb/kibPerGiB)

		return
	}

	logger.Warn("could not obtain memory usage")
}
