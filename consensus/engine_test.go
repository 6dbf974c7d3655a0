package consensus

import (
	"testing"

	"github.com/tolelom/bftsim/chain"
)

func TestThresholdFormula(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{n: 1, want: 1},
		{n: 3, want: 3},
		{n: 4, want: 3},
		{n: 7, want: 5},
		{n: 8, want: 6},
		{n: 100, want: 67},
	}
	for _, c := range cases {
		validators := make([]string, c.n)
		for i := range validators {
			validators[i] = string(rune('a' + i%26))
		}
		e := New(validators)
		if got := e.Threshold(); got != c.want {
			t.Errorf("n=%d: threshold=%d, want %d", c.n, got, c.want)
		}
	}
}

func TestAddVoteRejectsNonValidator(t *testing.T) {
	e := New([]string{"a", "b", "c", "d"})
	ok := e.AddVote(chain.Vote{Type: chain.Prevote, Height: 1, BlockHash: "h1", Voter: "intruder"})
	if ok {
		t.Fatal("vote from a non-validator should not be recorded")
	}
	if e.VoteCount(1, chain.Prevote, "h1") != 0 {
		t.Fatal("non-validator vote must not count")
	}
}

func TestAddVoteDedupsSameVoter(t *testing.T) {
	e := New([]string{"a", "b", "c", "d"})
	e.AddVote(chain.Vote{Type: chain.Prevote, Height: 1, BlockHash: "h1", Voter: "a"})
	e.AddVote(chain.Vote{Type: chain.Prevote, Height: 1, BlockHash: "h1", Voter: "a"})
	if got := e.VoteCount(1, chain.Prevote, "h1"); got != 1 {
		t.Fatalf("duplicate vote from the same voter counted twice: got %d", got)
	}
}

func TestCheckThresholdReachesQuorum(t *testing.T) {
	e := New([]string{"a", "b", "c", "d"}) // threshold = 3
	e.AddVote(chain.Vote{Type: chain.Precommit, Height: 5, BlockHash: "h1", Voter: "a"})
	e.AddVote(chain.Vote{Type: chain.Precommit, Height: 5, BlockHash: "h1", Voter: "b"})
	if e.CheckThreshold(5, chain.Precommit, "h1") {
		t.Fatal("quorum should not be reached with only 2 of 4 votes")
	}
	e.AddVote(chain.Vote{Type: chain.Precommit, Height: 5, BlockHash: "h1", Voter: "c"})
	if !e.CheckThreshold(5, chain.Precommit, "h1") {
		t.Fatal("quorum should be reached with 3 of 4 votes")
	}
}

func TestVotesAreIsolatedByHeightPhaseAndHash(t *testing.T) {
	e := New([]string{"a", "b", "c", "d"})
	e.AddVote(chain.Vote{Type: chain.Prevote, Height: 1, BlockHash: "h1", Voter: "a"})
	e.AddVote(chain.Vote{Type: chain.Precommit, Height: 1, BlockHash: "h1", Voter: "b"})
	e.AddVote(chain.Vote{Type: chain.Prevote, Height: 2, BlockHash: "h1", Voter: "c"})
	e.AddVote(chain.Vote{Type: chain.Prevote, Height: 1, BlockHash: "h2", Voter: "d"})

	if got := e.VoteCount(1, chain.Prevote, "h1"); got != 1 {
		t.Fatalf("height/phase/hash isolation broken: got %d", got)
	}
}

func TestVotingPower(t *testing.T) {
	e := New([]string{"a", "b", "c"})
	if e.VotingPower() != 3 {
		t.Fatalf("got %d, want 3", e.VotingPower())
	}
}
