package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/provably/zkattest-go/pkg/prover"
	"github.com/provably/zkattest-go/pkg/verifier"
)

var (
	dkimSelector string
	redisURL     string
	nullifierTTL time.Duration
	circomVKPath string
	timeDev      bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file.zka>",
	Short: "Verify an attestation envelope",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		filePath := args[0]

		opts := verifier.VerificationOptions{
			FilePath:     filePath,
			KeyDir:       keyDir,
			DKIMSelector: dkimSelector,
			RedisURL:     redisURL,
			NullifierTTL: nullifierTTL,
			CircomVKPath: circomVKPath,
			Verbose:      verbose,
		}

		v := verifier.NewVerifier(opts)

		if !timeDev {
			printHeader("zkattest Verification Tool")
			fmt.Printf("%s  Reading: %s\n", color.BlueString("ℹ"), filePath)
		}

		res, err := v.Verify()
		if err != nil {
			printError(err.Error())
			os.Exit(1)
		}

		if !timeDev {
			printSection("1. Envelope")
			printSuccess(fmt.Sprintf("Envelope parsed (%s)", res.Kind))

			printSection("2. Claims")
			if res.Zk.Semantic {
				printSuccess("Claims consistent with public signals")
			} else {
				printError("Semantic claim check failed")
			}

			if res.Kind == prover.KindDomainFull || res.Kind == prover.KindDomainHeader {
				printSection("3. DNS Anchor")
				if res.Dns.Skipped {
					fmt.Printf("%s  Skipped (no --dkim-selector)\n", color.BlueString("ℹ"))
				} else if res.Dns.Valid {
					printSuccess("Published DKIM key matches proven commitment")
				} else {
					printError(res.Dns.Error)
				}
			}

			printSection("4. ZK-SNARK")
			if res.Zk.Valid {
				printSuccess("Proof valid")
			} else {
				printError("Proof invalid (check verbose for details)")
				if verbose && res.Zk.Error != "" {
					fmt.Printf("   Reason: %s\n", res.Zk.Error)
				}
			}

			for _, e := range res.Errors {
				printError(e)
			}

			if verbose {
				printSection("Details")
				printDetails(res)
			}

			if res.Success {
				printHeader("Verification Successful")
				color.New(color.BgBlue, color.FgWhite).Printf("   ALL CHECKS PASSED   \n")
			}
		}

		if timeDev {
			fmt.Printf("%.4f\n", res.Dns.FetchTimeMs/1000)
			fmt.Printf("%.4f\n", res.Zk.ProofTimeMs/1000)
			if res.Success {
				fmt.Println("1")
			} else {
				fmt.Println("0")
			}
		}

		if !res.Success {
			os.Exit(1)
		}
	},
}

func printDetails(res *verifier.VerificationResult) {
	switch res.Kind {
	case prover.KindDomainFull, prover.KindDomainHeader:
		fmt.Printf("   Domain:               %s\n", res.Details.Domain)
		fmt.Printf("   Address:              %s\n", res.Details.Address)
		fmt.Printf("   Key commitment:       %s\n", res.Details.PubKeyCommitment)
		fmt.Printf("   Signature commitment: %s\n", res.Details.SignatureCommitment)
	case prover.KindMembership:
		fmt.Printf("   Nullifier:      %s\n", res.Details.NullifierHash)
		fmt.Printf("   Root:           %s\n", res.Details.Root)
		fmt.Printf("   Attestation id: %s\n", res.Details.AttestationID)
	}
}

func init() {
	verifyCmd.Flags().StringVar(&dkimSelector, "dkim-selector", "", "DKIM selector for the DNS key anchor check")
	verifyCmd.Flags().StringVar(&redisURL, "redis-url", "", "redis url for nullifier replay tracking")
	verifyCmd.Flags().DurationVar(&nullifierTTL, "nullifier-ttl", 0, "nullifier record expiry (0 = never)")
	verifyCmd.Flags().StringVar(&circomVKPath, "circom-vk", "", "SnarkJS verification key for externally produced membership proofs")
	verifyCmd.Flags().BoolVar(&timeDev, "time-dev", false, "output only time and status")
	rootCmd.AddCommand(verifyCmd)
}

func printHeader(msg string) {
	cyan := color.New(color.FgCyan).SprintFunc()
	fmt.Printf("\n%s\n%s%s\n%s\n",
		cyan(strings.Repeat("=", 64)),
		strings.Repeat(" ", (64-len(msg))/2), msg,
		cyan(strings.Repeat("=", 64)))
}

func printSection(msg string) {
	blue := color.New(color.FgBlue).SprintFunc()
	fmt.Printf("\n%s %s %s\n",
		blue(strings.Repeat("=", (64-len(msg)-2)/2)),
		msg,
		blue(strings.Repeat("=", (64-len(msg)-2)/2)))
}

func printSuccess(msg string) {
	fmt.Printf("%s✔  %s\n", color.GreenString(""), msg)
}

func printError(msg string) {
	fmt.Printf("%s✖  [ERROR] %s\n", color.RedString(""), msg)
}
