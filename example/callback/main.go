package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/soilwire/soilwire/pkg/soilwire"
)

func main() {
	flow, err := soilwire.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	callback := func(ctx context.Context, r soilwire.Reading) error {
		fmt.Printf("%s source_ts=%s values=%v\n",
			r.ObservedAt.Format(time.RFC3339),
			r.SourceTimestamp,
			r.Values,
		)
		return nil
	}

	if err := flow.Run(ctx, soilwire.StreamOutCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
