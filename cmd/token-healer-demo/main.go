/*
Token-healer-demo drives a single token-healing search session against a toy
vocabulary and a toy scoring oracle. It does not invoke a real tokenizer or
inference engine; see pkg/healing/tokenizeradapter and pkg/healing/oracle for
the adapters that wire to a real HuggingFace tokenizer or a remote oracle over
ZeroMQ or Redis.

Usage:

	token-healer-demo [flags]

The flags are:

	-t, --text STRING
		The prompt tail to re-tokenize. Defaults to "bba".

	-v, --verbose
		Log each search step at debug level instead of only the outcome.
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"

	"github.com/modeltc/token-healing-go/pkg/healing"
	"github.com/modeltc/token-healing-go/pkg/healing/searchtree"
	"github.com/modeltc/token-healing-go/pkg/healing/vocab"
	"github.com/modeltc/token-healing-go/pkg/utils/logging"
)

var (
	text    *string = pflag.StringP("text", "t", "bba", "The prompt tail to re-tokenize")
	verbose *bool   = pflag.BoolP("verbose", "v", false, "Log each search step at debug level")
)

// demoVocab is the spec's worked example: sorted order is
// a, aa, ab, b, bb, bbaa, c, ca, cc.
var demoVocab = [][]byte{
	[]byte("bb"), []byte("ca"), []byte("ab"), []byte("c"), []byte("aa"),
	[]byte("bbaa"), []byte("a"), []byte("cc"), []byte("b"),
}

// toyEncode is a stand-in tokenizer: it reports, for every candidate end
// position, the single original vocabulary entry whose bytes exactly match
// text[:pos], if any. A real deployment uses tokenizeradapter.HFAdapter here.
func toyEncode(voc [][]byte, text string) searchtree.EncodeFunc {
	return func(positions []int) ([]searchtree.PositionEncoding, error) {
		var out []searchtree.PositionEncoding
		for _, pos := range positions {
			for id, tok := range voc {
				if string(tok) == text[:pos] {
					out = append(out, searchtree.PositionEncoding{
						Pos: pos,
						IDs: []vocab.TokenID{vocab.TokenID(id)},
					})
					break
				}
			}
		}
		return out, nil
	}
}

// toyScore gives every sorted token id a deterministic, reproducible
// pseudo-log-probability, so the demo's output does not depend on a live
// model. Real deployments replace this with an oracle.Transport round trip.
func toyScore(id vocab.SortedTokenID) float64 {
	h := xxhash.Sum64String(fmt.Sprintf("token-%d", id))
	return -float64(h%1000) / 1000.0
}

func respond(req *searchtree.InferRequest) searchtree.InferResponse {
	var res searchtree.InferResponse
	if req.SamplingIDRange != nil {
		best := req.SamplingIDRange.Lower
		bestScore := toyScore(best)
		for id := req.SamplingIDRange.Lower + 1; id < req.SamplingIDRange.Upper; id++ {
			if s := toyScore(id); s > bestScore {
				best, bestScore = id, s
			}
		}
		res.Sampled = &searchtree.Prediction{TokenID: best, LogProb: bestScore}
	}
	for _, id := range req.SparseChoices {
		res.SparseChoices = append(res.SparseChoices, searchtree.Prediction{TokenID: id, LogProb: toyScore(id)})
	}
	return res
}

func main() {
	pflag.Parse()

	ctx := klog.NewContext(context.Background(), klog.Background())
	logger := klog.FromContext(ctx)
	if *verbose {
		logger.V(logging.DEBUG).Info("verbose logging enabled")
	}

	cfg := healing.DefaultConfig()
	cfg.EnableMetrics = true
	healer, err := healing.NewHealer(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create healer: %v\n", err)
		os.Exit(1)
	}

	automaton, err := healer.GetOrBuildAutomaton(ctx, demoVocab)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build automaton: %v\n", err)
		os.Exit(1)
	}

	sess, req, err := healer.NewSession(ctx, automaton, toyEncode(demoVocab, *text), *text, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open session: %v\n", err)
		os.Exit(1)
	}
	if sess == nil {
		fmt.Printf("no healing needed for %q\n", *text)
		return
	}

	fmt.Printf("prefilled token ids: %v\n", sess.PrefilledTokenIDs())

	steps := 0
	for req != nil {
		steps++
		if *verbose {
			logger.V(logging.DEBUG).Info("search step", "step", steps, "backtrace", req.Backtrace)
		}
		res := respond(req)
		req, err = sess.Feed(res)
		if err != nil {
			fmt.Fprintf(os.Stderr, "feed failed: %v\n", err)
			os.Exit(1)
		}
	}

	best, err := sess.GetBestChoice()
	if err != nil {
		fmt.Fprintf(os.Stderr, "no best choice found: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("best choice after %d steps: extra token ids %v, accumulated log-prob %.4f\n",
		steps, best.ExtraTokenIDs, best.AccumLogProb)
}
