package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"unsafe"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joshuapare/poolkit/backing"
	"github.com/joshuapare/poolkit/pool"
)

var (
	benchWorkers int
	benchRounds  int
	benchMaxSize int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Drive the tiered pools with concurrent workers",
	Long: `bench runs worker goroutines that allocate and free random small
objects through per-worker local pools, then donate the freelists to
the global pool on exit and print both tiers' statistics.`,
	RunE: runBench,
}

func init() {
	benchCmd.Flags().IntVarP(&benchWorkers, "workers", "w", 4, "Concurrent workers")
	benchCmd.Flags().IntVarP(&benchRounds, "rounds", "r", 10000, "Alloc/free rounds per worker")
	benchCmd.Flags().IntVar(&benchMaxSize, "max-size", 512, "Largest request size in bytes")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	g := pool.NewGlobal(backing.NewHeap())

	var eg errgroup.Group
	for w := 0; w < benchWorkers; w++ {
		w := w
		eg.Go(func() error {
			l := g.Local()
			defer l.Close()

			rng := rand.New(rand.NewSource(int64(w)))
			held := make([]unsafe.Pointer, 0, 64)
			for i := 0; i < benchRounds; i++ {
				p := l.Allocate(1 + rng.Intn(benchMaxSize))
				if p == nil {
					return fmt.Errorf("worker %d: allocation failed at round %d", w, i)
				}
				held = append(held, p)
				if len(held) >= 64 || rng.Intn(4) == 0 {
					for _, q := range held {
						l.Deallocate(q)
					}
					held = held[:0]
				}
			}
			for _, q := range held {
				l.Deallocate(q)
			}
			slog.Debug("worker done", "worker", w, "stats", l.Stats().String())
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	fmt.Printf("global after donation: %s\n", g.Stats())
	reclaimed := g.ReclaimIdle()
	fmt.Printf("reclaimed %d bytes\n", reclaimed)
	fmt.Printf("global after reclaim:  %s\n", g.Stats())
	return nil
}
