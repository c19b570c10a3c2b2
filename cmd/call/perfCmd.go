package call

import (
	"context"
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/dRPC/cmd/util"
	"github.com/ValentinKolb/dRPC/lib/promise"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dRPC nodes",
		Long:    "Runs a set of benchmarks against the echo service of the node and prints ns/op and ops/sec per benchmark",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfPipeline         = 16
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. echo,notify)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the message for the echo-large test should be (in KB)"))
	key = "pipeline"
	perfTestCmd.Flags().Int(key, 16, util.WrapString("Number of calls each thread keeps in flight for the echo-async test"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfNumThreads = viper.GetInt("threads")
	perfPipeline = max(viper.GetInt("pipeline"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for dRPC nodes")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	config := util.GetPluginConfig()
	fmt.Println(config.String())
	fmt.Printf("Target Node: %d\n", viper.GetUint32("node"))
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	// warm up the connection so the first benchmark does not measure the connect
	if _, err := rpcEcho.Ping(); err != nil {
		return errors.Wrap(err, "node is not reachable")
	}

	fmt.Println("starting tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	benchmarks := []struct {
		name string
		fn   func(b *testing.B)
	}{
		{"ping", benchPing},
		{"echo", benchEcho},
		{"echo-large", benchEchoLarge},
		{"echo-async", benchEchoAsync},
		{"notify", benchNotify},
	}

	for _, bench := range benchmarks {
		if shouldSkip(bench.name) {
			results[bench.name] = testing.BenchmarkResult{}
			printResult(bench.name, testing.BenchmarkResult{})
			continue
		}
		result := testing.Benchmark(bench.fn)
		results[bench.name] = result
		printResult(bench.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Benchmarks
// --------------------------------------------------------------------------

func benchPing(b *testing.B) {
	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := rpcEcho.Ping(); err != nil {
				log.Printf("(ping) - error: %v\n", err)
			}
		}
	})
}

func benchEcho(b *testing.B) {
	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			msg := "test-" + strconv.Itoa(counter%100)
			reply, err := rpcEcho.Echo(msg)
			if err != nil {
				log.Printf("(echo) - error: %v\n", err)
			} else if reply != msg {
				log.Printf("(echo) - wrong reply %q for %q\n", reply, msg)
			}
			counter++
		}
	})
}

func benchEchoLarge(b *testing.B) {
	// prepare large message
	largeValue := strings.Repeat("x", perfLargeValueSizeKB*1024)

	b.SetParallelism(perfNumThreads)
	b.SetBytes(int64(len(largeValue)))
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := rpcEcho.Echo(largeValue); err != nil {
				log.Printf("(echo-large) - error: %v\n", err)
			}
		}
	})
}

// benchEchoAsync keeps perfPipeline calls in flight per thread
func benchEchoAsync(b *testing.B) {
	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		inFlight := make([]*promise.Promise[string], 0, perfPipeline)
		drain := func() {
			for _, p := range inFlight {
				if _, err := p.Await(context.Background()); err != nil {
					log.Printf("(echo-async) - error: %v\n", err)
				}
			}
			inFlight = inFlight[:0]
		}

		for pb.Next() {
			inFlight = append(inFlight, rpcEcho.EchoAsync("async"))
			if len(inFlight) == perfPipeline {
				drain()
			}
		}
		drain()
	})
}

func benchNotify(b *testing.B) {
	b.SetParallelism(perfNumThreads)
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := rpcEcho.Notify("perf"); err != nil {
				log.Printf("(notify) - error: %v\n", err)
			}
		}
	})

	// the notifications are written once this reply arrives
	if _, err := rpcEcho.Ping(); err != nil {
		log.Printf("(notify) - error: %v\n", err)
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	config := util.GetPluginConfig()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Node", "TimeoutSec", "Serializer", "TCPNoDelay",
		"Threads", "LargeValueSizeKB", "Pipeline",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strconv.FormatUint(uint64(viper.GetUint32("node")), 10),
			strconv.Itoa(int(config.TransactionTimeout / time.Second)),
			viper.GetString("serializer"),
			strconv.FormatBool(config.Transport.TCPNoDelay),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfPipeline),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
