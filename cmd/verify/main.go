// Command verify checks a resolved round without contacting the server.
//
//	verify -commitment <hash> -server-seed <hex> -client-seed <seed> [-roll N -verification-hash <hex>]
//
// It prints the recomputed verification hash and roll. When -roll or
// -verification-hash are given they are compared against the recomputed values.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/cbodonnell/fairroll/pkg/round"
)

func main() {
	commitmentHash := flag.String("commitment", "", "commitment hash published before the round")
	serverSeed := flag.String("server-seed", "", "revealed server seed (hex)")
	clientSeed := flag.String("client-seed", "", "client seed used for the round")
	roll := flag.Int("roll", -1, "reported roll result to check")
	verificationHash := flag.String("verification-hash", "", "reported verification hash to check")
	flag.Parse()

	if *commitmentHash == "" || *serverSeed == "" {
		fmt.Fprintln(os.Stderr, "-commitment and -server-seed are required")
		flag.Usage()
		os.Exit(2)
	}

	os.Exit(run(*commitmentHash, *serverSeed, *clientSeed, *roll, *verificationHash))
}

func run(commitmentHash, serverSeed, clientSeed string, roll int, verificationHash string) int {
	secret, err := hex.DecodeString(serverSeed)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v: %v\n", round.ErrMalformedServerSeed, err)
		return 1
	}

	wantHash, wantRoll := round.Derive(secret, clientSeed)
	fmt.Printf("verification_hash: %s\n", wantHash)
	fmt.Printf("roll_result: %d\n", wantRoll)

	record := &round.VerificationRecord{
		RollResult:       wantRoll,
		ServerSeed:       serverSeed,
		ClientSeed:       clientSeed,
		VerificationHash: wantHash,
	}
	if roll >= 0 {
		record.RollResult = roll
	}
	if verificationHash != "" {
		record.VerificationHash = verificationHash
	}

	if err := round.Verify(commitmentHash, record); err != nil {
		fmt.Printf("FAIL: %v\n", err)
		return 1
	}
	fmt.Println("OK")
	return 0
}
