package bridge_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"testing"
	"time"

	"github.com/m-mizutani/quakead/pkg/model"
	"github.com/m-mizutani/quakead/pkg/repository"
	"github.com/m-mizutani/quakead/pkg/service/bridge"
	"github.com/m-mizutani/quakead/pkg/service/worker"
	"github.com/m-mizutani/quakead/pkg/usecase/catalog"
	"github.com/m-mizutani/quakead/pkg/usecase/targeting"
)

// workerModeEnv switches the test binary into a worker process. Tests spawn
// os.Args[0] with this variable set to exercise the pipe transport against a
// real child process.
const workerModeEnv = "QUAKEAD_TEST_WORKER_MODE"

func TestMain(m *testing.M) {
	if mode := os.Getenv(workerModeEnv); mode != "" {
		os.Exit(runTestWorker(mode))
	}
	os.Exit(m.Run())
}

var eventTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

// exampleCatalog holds one M6.0 event and one uninsured $600,000 home 10 km
// away, plus an insured home that never qualifies.
func exampleCatalog() (*catalog.Catalog, error) {
	ctx := context.Background()
	store := repository.NewMemory()

	if err := store.PutEvents(ctx, []*model.SeismicEvent{
		{EventID: "ci40000001", Time: eventTime, Latitude: 34.05, Longitude: -118.24, Magnitude: 6.0, Place: "Los Angeles, CA"},
	}); err != nil {
		return nil, err
	}

	north := 10 / (targeting.EarthRadiusKm * math.Pi / 180)
	if err := store.PutHouseholds(ctx, []*model.Household{
		{PersonID: "P10000", FirstName: "Jane", LastName: "Doe", Email: "jane.doe@email.com", Latitude: 34.05 + north, Longitude: -118.24, HouseValue: 600000},
		{PersonID: "P10001", FirstName: "John", LastName: "Roe", Email: "john.roe@email.com", Latitude: 34.05, Longitude: -118.24, HouseValue: 900000, HasInsurance: true},
	}); err != nil {
		return nil, err
	}

	return catalog.New(store, catalog.WithClock(func() time.Time { return eventTime }))
}

func runTestWorker(mode string) int {
	in := bufio.NewReader(os.Stdin)

	switch mode {
	case "serve":
		c, err := exampleCatalog()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if err := worker.Serve(context.Background(), os.Stdin, os.Stdout, c); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0

	case "notify-then-serve":
		fmt.Println(`{"jsonrpc":"2.0","method":"notifications/serverReady","params":{}}`)
		return runTestWorker("serve")

	case "crash":
		fmt.Fprintln(os.Stderr, "boom: database is locked")
		return 3

	case "exit-before-response":
		_, _ = in.ReadBytes('\n')
		return 0

	case "hang":
		_, _ = io.Copy(io.Discard, in)
		return 0

	case "stubborn":
		// ignores stdin being closed
		time.Sleep(time.Hour)
		return 0

	case "wrong-id", "error-string", "error-null", "garbage", "echo-id":
		for {
			line, err := in.ReadBytes('\n')
			if err != nil {
				return 0
			}
			var req bridge.Request
			if err := json.Unmarshal(line, &req); err != nil || req.ID == nil {
				continue
			}
			id := *req.ID
			switch mode {
			case "wrong-id":
				fmt.Printf(`{"jsonrpc":"2.0","id":%d,"result":{}}`+"\n", id+100)
			case "error-string":
				fmt.Printf(`{"jsonrpc":"2.0","id":%d,"error":"plain failure"}`+"\n", id)
			case "error-null":
				fmt.Printf(`{"jsonrpc":"2.0","id":%d,"result":{"content":[]},"error":null}`+"\n", id)
			case "garbage":
				fmt.Println("this is not json")
			case "echo-id":
				fmt.Printf(`{"jsonrpc":"2.0","id":%d,"result":{"content":[{"type":"text","text":"%d"}]}}`+"\n", id, id)
			}
		}
	}

	fmt.Fprintln(os.Stderr, "unknown worker mode:", mode)
	return 2
}

func pipeConfig(mode string) bridge.PipeConfig {
	return bridge.PipeConfig{
		Command:     []string{os.Args[0]},
		Env:         append(os.Environ(), workerModeEnv+"="+mode),
		Settle:      200 * time.Millisecond,
		StopTimeout: 500 * time.Millisecond,
	}
}

func startPipe(t *testing.T, cfg bridge.PipeConfig) *bridge.Pipe {
	t.Helper()
	p := bridge.NewPipe(cfg)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("failed to start pipe: %+v", err)
	}
	t.Cleanup(func() { _ = p.Stop() })
	return p
}
