package telemetry_test

import (
	"context"
	"fmt"

	"github.com/o3go/o3go/pkg/catalog"
	"github.com/o3go/o3go/pkg/command"
	"github.com/o3go/o3go/pkg/dispatch"
	"github.com/o3go/o3go/pkg/telemetry"
)

// Example_eventPublishing streams session events to a subscriber.
func Example_eventPublishing() {
	events := telemetry.NewEventPublisher(telemetry.EventsConfig{BufferSize: 16})
	events.Subscribe(func(e telemetry.Event) {
		fmt.Println(e.Type, e.Seq, e.Line)
	}, telemetry.FilterByType(telemetry.EventTypeEmitted))

	ctx := context.Background()
	s, err := command.Open(ctx, command.ModelConfig{Dimensions: 2, DOFPerNode: 2},
		dispatch.NewCapture(), command.WithObserver(events))
	if err != nil {
		panic(err)
	}
	if _, err := command.New(ctx, s, catalog.Node{Coords: []float64{0, 0}}); err != nil {
		panic(err)
	}
	_ = events.Shutdown(ctx)

	// Output:
	// command.emitted 1 model basic -ndm 2 -ndf 2
	// command.emitted 2 node 1 0.0 0.0
}
