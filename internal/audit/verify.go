package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrBrokenChain is returned when the audit log fails verification.
var ErrBrokenChain = errors.New("audit chain broken")

// ChainReport is the verification result for one chain.
type ChainReport struct {
	Key    string
	Events int
	Head   string
}

// VerifyChain reads every event backup in dir and checks that each chain
// is an unbroken sequence: every event hash recomputes, exactly one event
// starts the chain, no event has two successors, and the last event
// matches the recorded chain head.
func VerifyChain(dir string) ([]ChainReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read audit dir: %w", err)
	}

	chains := make(map[string][]*AuditEvent)
	var problems []error
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || name == HeadsFile || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		var evt AuditEvent
		if err := json.Unmarshal(data, &evt); err != nil {
			problems = append(problems, fmt.Errorf("%s: decode: %w", name, err))
			continue
		}
		if got := ComputeEventHash(&evt); got != evt.Chain.EventHash {
			problems = append(problems, fmt.Errorf("%s: event hash mismatch (stored %s, computed %s)", name, evt.Chain.EventHash, got))
			continue
		}
		chains[evt.ChainKey()] = append(chains[evt.ChainKey()], &evt)
	}

	heads := map[string]string{}
	if data, err := os.ReadFile(filepath.Join(dir, HeadsFile)); err == nil {
		if err := json.Unmarshal(data, &heads); err != nil {
			return nil, fmt.Errorf("decode chain heads: %w", err)
		}
	}

	keys := make([]string, 0, len(chains))
	for k := range chains {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var reports []ChainReport
	for _, key := range keys {
		report, err := walkChain(key, chains[key], heads[key])
		if err != nil {
			problems = append(problems, err)
			continue
		}
		reports = append(reports, report)
	}

	if len(problems) > 0 {
		return reports, fmt.Errorf("%w: %w", ErrBrokenChain, errors.Join(problems...))
	}
	return reports, nil
}

func walkChain(key string, events []*AuditEvent, recordedHead string) (ChainReport, error) {
	next := make(map[string]*AuditEvent, len(events))
	var genesis []*AuditEvent
	for _, evt := range events {
		prev := evt.Chain.PrevEventHash
		if prev == "" {
			genesis = append(genesis, evt)
			continue
		}
		if other, dup := next[prev]; dup {
			return ChainReport{}, fmt.Errorf("%s: events %s and %s share predecessor %s", key, other.EventID, evt.EventID, prev)
		}
		next[prev] = evt
	}
	if len(genesis) != 1 {
		return ChainReport{}, fmt.Errorf("%s: %d events start the chain, want 1", key, len(genesis))
	}

	seen := 1
	cur := genesis[0]
	for {
		succ, ok := next[cur.Chain.EventHash]
		if !ok {
			break
		}
		cur = succ
		seen++
	}
	if seen != len(events) {
		return ChainReport{}, fmt.Errorf("%s: %d of %d events unreachable from the first event", key, len(events)-seen, len(events))
	}
	if recordedHead != "" && recordedHead != cur.Chain.EventHash {
		return ChainReport{}, fmt.Errorf("%s: recorded head %s does not match last event %s", key, recordedHead, cur.Chain.EventHash)
	}

	return ChainReport{Key: key, Events: seen, Head: cur.Chain.EventHash}, nil
}
