package stepper

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// stageData holds the per-step evaluation stages shared between the
// integrator and the winning extension's finalization.
type stageData struct {
	k    [4]r3.Vec  // direction-derivative stages
	kQoP [4]float64 // q/p derivative stages
	b    [3]r3.Vec  // field at step start, midpoint, endpoint
	mass float64
}

// Extension is a pluggable physics model. Exactly one extension wins
// each step; extensions never see steps that are not theirs.
type Extension interface {
	// Bid reports validity for the upcoming step; 0 means invalid,
	// higher bids pre-empt lower ones under HighestBidAuctioneer.
	Bid(s *State) int

	// Stage accumulates the contribution to RK stage i (0..3). For
	// i > 0, kPrev is the previous stage derivative and h the stage
	// offset (half step for the midpoints, full step for the last).
	// Returning false rejects the trial step.
	Stage(s *State, i int, h float64, b r3.Vec, kPrev r3.Vec, k *r3.Vec, kQoP *float64) bool

	// Finalize applies the accumulated higher-order corrections of
	// an accepted step of signed length h. When d is non-nil it must
	// also fill the 8x8 free transport matrix of the step.
	// Returning false invalidates the step.
	Finalize(s *State, h float64, d *mat.Dense) bool
}

// Auctioneer selects exactly one winner among the extensions' bids,
// returning its index or -1 when none is valid.
type Auctioneer interface {
	Select(bids []int) int
}

// FirstValidAuctioneer picks the first extension with a positive bid,
// deterministic by registration order.
type FirstValidAuctioneer struct{}

func (FirstValidAuctioneer) Select(bids []int) int {
	for i, b := range bids {
		if b > 0 {
			return i
		}
	}
	return -1
}

// HighestBidAuctioneer picks the highest positive bid. Equal bids
// resolve by registration order; this tie-break is implementation
// defined but stable.
type HighestBidAuctioneer struct{}

func (HighestBidAuctioneer) Select(bids []int) int {
	best, bestBid := -1, 0
	for i, b := range bids {
		if b > bestBid {
			best, bestBid = i, b
		}
	}
	return best
}
