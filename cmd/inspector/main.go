package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/GoPolymarket/hypergate/internal/config"
	"github.com/GoPolymarket/hypergate/internal/exchange"
	"github.com/GoPolymarket/hypergate/internal/pkg/logger"
	"github.com/GoPolymarket/hypergate/internal/service"
	"github.com/GoPolymarket/hypergate/internal/signer"
)

// inspector prints what the normalizer resolves for each coin and checks that
// a locally signed action recovers to the signing address.
func main() {
	coins := flag.String("coins", "", "comma separated coins, defaults to trading.pairs")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init("warn")

	if err := selfCheck(cfg.Exchange.Mainnet); err != nil {
		log.Fatalf("signing self-check failed: %v", err)
	}
	fmt.Println("signing self-check ok")

	list := cfg.Trading.Pairs
	if *coins != "" {
		list = strings.Split(*coins, ",")
	}

	client := exchange.NewClient(cfg.Exchange)
	n := service.NewNormalizer(client, service.NormalizerConfig{}, logger.Get())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, coin := range list {
		meta, err := n.Resolve(ctx, strings.TrimSpace(coin))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", coin, err)
			continue
		}
		_ = enc.Encode(meta)
	}
}

func selfCheck(mainnet bool) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	s, err := signer.NewSigner(hex.EncodeToString(crypto.FromECDSA(key)))
	if err != nil {
		return err
	}

	action := signer.NewUpdateLeverageAction(0, true, 1)
	nonce := uint64(time.Now().UnixMilli())
	digest, err := signer.ActionHash(action, nil, nonce, nil)
	if err != nil {
		return err
	}
	sig, err := s.SignAction(action, nil, nonce, nil, mainnet)
	if err != nil {
		return err
	}
	return signer.VerifySignature(digest, mainnet, sig, s.Address())
}
