package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type exampleCountingSink struct {
	total int
}

func (s *exampleCountingSink) Consume(_ context.Context, batch []Event) error {
	s.total += len(batch)
	return nil
}

func (s *exampleCountingSink) Close(context.Context) error {
	return nil
}

// ExampleHub_Emit demonstrates emitting an event and flushing via Close.
func ExampleHub_Emit() {
	sink := &exampleCountingSink{}
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 1,
		MaxBatchWait:   time.Second,
	}, sink)

	hub.Emit(Event{
		SessionID: uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		TS:        time.Unix(0, 0),
		Stage:     StageSessionReset,
	})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("events forwarded: %d\n", sink.total)
	// Output:
	// events forwarded: 1
}

// ExampleSink implements a custom Sink that totals finished task weight.
func ExampleSink() {
	var finished float64
	capture := sinkFunc(func(_ context.Context, batch []Event) error {
		for _, evt := range batch {
			if evt.Stage == StageTaskDone || evt.Stage == StageTaskFailed {
				finished += evt.Weight
			}
		}
		return nil
	})
	hub := NewHub(Config{
		BufferSize:     4,
		MaxBatchEvents: 1,
		MaxBatchWait:   time.Second,
	}, capture)

	id := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	hub.Emit(Event{SessionID: id, TS: time.Unix(0, 0), Stage: StageTaskDone, Task: "textures", Weight: 3, Progress: 0.75})
	hub.Emit(Event{SessionID: id, TS: time.Unix(1, 0), Stage: StageTaskFailed, Task: "audio", Weight: 1, Progress: 1})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("finished weight: %.0f\n", finished)
	// Output:
	// finished weight: 4
}

type sinkFunc func(context.Context, []Event) error

func (f sinkFunc) Consume(ctx context.Context, batch []Event) error {
	return f(ctx, batch)
}

func (sinkFunc) Close(context.Context) error {
	return nil
}

func sampleEvent(stage Stage) Event {
	return Event{
		SessionID: uuid.New(),
		TS:        time.Now(),
		Stage:     stage,
		Task:      "manifest",
		Weight:    1,
		Progress:  0.5,
	}
}
