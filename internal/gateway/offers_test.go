package gateway

import (
	"sync"
	"testing"

	"github.com/example/inspection-dispatch/internal/models"
)

func TestAcceptExactlyOneWinner(t *testing.T) {
	r := NewOfferRegistry()
	r.Put(models.DispatchOffer{ID: "o1", Status: models.OfferOpen})

	const racers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	losers := 0
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := r.Accept("o1", "driver")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
			} else if err == ErrOfferTaken {
				losers++
			}
		}(i)
	}
	wg.Wait()
	if winners != 1 || losers != racers-1 {
		t.Fatalf("expected 1 winner and %d losers, got %d/%d", racers-1, winners, losers)
	}
}

func TestAcceptUnknownOffer(t *testing.T) {
	r := NewOfferRegistry()
	if _, err := r.Accept("nope", "d1"); err != ErrOfferUnknown {
		t.Fatalf("expected unknown, got %v", err)
	}
}

func TestUpdateUnknownOffer(t *testing.T) {
	r := NewOfferRegistry()
	if _, err := r.Update("nope", func(o *models.DispatchOffer) {}); err != ErrOfferUnknown {
		t.Fatalf("expected unknown, got %v", err)
	}
}

func TestListOpenExcludesSettled(t *testing.T) {
	r := NewOfferRegistry()
	r.Put(models.DispatchOffer{ID: "a", Status: models.OfferOpen})
	r.Put(models.DispatchOffer{ID: "b", Status: models.OfferOpen})
	if _, err := r.Accept("a", "d1"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Cancel("b"); err != nil {
		t.Fatal(err)
	}
	if got := r.ListOpen(); len(got) != 0 {
		t.Fatalf("expected no open offers, got %+v", got)
	}
}
