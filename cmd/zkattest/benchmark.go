package main

import (
	"fmt"
	"math"
	"os"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/spf13/cobra"

	"github.com/provably/zkattest-go/pkg/circuit"
	zkcrypto "github.com/provably/zkattest-go/pkg/crypto"
	"github.com/provably/zkattest-go/pkg/prover"
)

var numRuns int

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Benchmark native membership proving",
	Run: func(cmd *cobra.Command, args []string) {
		secret, err := zkcrypto.GenerateSecretKey()
		if err != nil {
			fmt.Printf("Error generating secret: %v\n", err)
			os.Exit(1)
		}
		x, y := zkcrypto.DerivePublicKey(secret)
		leaf, err := zkcrypto.MembershipLeaf(x, y)
		if err != nil {
			fmt.Printf("Error deriving leaf: %v\n", err)
			os.Exit(1)
		}

		tree := zkcrypto.NewTree(circuit.MerkleDepth)
		index, err := tree.Insert(*leaf)
		if err != nil {
			fmt.Printf("Error inserting leaf: %v\n", err)
			os.Exit(1)
		}
		root, err := tree.Root()
		if err != nil {
			fmt.Printf("Error computing root: %v\n", err)
			os.Exit(1)
		}
		siblings, err := tree.Path(index)
		if err != nil {
			fmt.Printf("Error computing path: %v\n", err)
			os.Exit(1)
		}

		var contextID fr.Element
		contextID.SetBytes(zkcrypto.Sha256([]byte("benchmark")))

		p := prover.NewProver(keyDir)
		witness := &prover.MembershipWitness{SecretKey: secret, LeafIndex: index, Siblings: siblings}

		var compileTimes, witnessTimes, proveTimes []float64
		for i := 0; i < numRuns; i++ {
			fmt.Printf("\r  Run %d/%d...", i+1, numRuns)

			result, _, err := p.BenchmarkMembership(witness, root, contextID)
			if err != nil {
				fmt.Printf("\n[ERROR] Run %d failed: %v\n", i+1, err)
				continue
			}
			compileTimes = append(compileTimes, result.CompileTimeMs/1000)
			witnessTimes = append(witnessTimes, result.WitnessTimeMs/1000)
			proveTimes = append(proveTimes, result.ProveTimeMs/1000)
		}
		fmt.Printf("\r%-40s\r", "")
		fmt.Println("Benchmark complete.")

		if len(proveTimes) == 0 {
			fmt.Println("ERROR: No successful runs were recorded. Cannot compute statistics.")
			os.Exit(1)
		}

		fmt.Printf("\nTotal Attempts:    %d\n", numRuns)
		fmt.Printf("Successful Runs:   %d\n", len(proveTimes))
		fmt.Println("\n--- Performance (in seconds) ---")
		printMetricStats("Circuit Compile", compileTimes)
		printMetricStats("Witness Generation", witnessTimes)
		printMetricStats("Proof Generation", proveTimes)
		fmt.Printf("--------------------------------------\n")
	},
}

func printMetricStats(label string, times []float64) {
	if len(times) == 0 {
		return
	}

	var mean, stdev, minTime, maxTime float64
	minTime = times[0]
	maxTime = times[0]
	sum := 0.0

	for _, t := range times {
		sum += t
		if t < minTime {
			minTime = t
		}
		if t > maxTime {
			maxTime = t
		}
	}
	mean = sum / float64(len(times))

	if len(times) > 1 {
		var sqDiffSum float64
		for _, t := range times {
			sqDiffSum += math.Pow(t-mean, 2)
		}
		stdev = math.Sqrt(sqDiffSum / float64(len(times)-1))
	}

	fmt.Printf("[%s]\n", label)
	fmt.Printf("  Average:            %.6f s\n", mean)
	fmt.Printf("  Standard Deviation: %.6f s\n", stdev)
	fmt.Printf("  Min Time:           %.6f s\n", minTime)
	fmt.Printf("  Max Time:           %.6f s\n", maxTime)
}

func init() {
	benchmarkCmd.Flags().IntVarP(&numRuns, "num-runs", "n", 10, "number of proving runs")
	rootCmd.AddCommand(benchmarkCmd)
}
