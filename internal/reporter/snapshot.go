package reporter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Document field names. These are the literal keys external readers parse.
const (
	KeyStatus      = "status"
	KeyCurrentRepo = "current-repo"
	KeyRepos       = "repos"
	KeyStatistics  = "statistics"

	KeyRepoName      = "name"
	KeyRepoHumanName = "human-name"
	KeyRepoStatus    = "status"

	KeyCurrentCycleTime = "current-cycle-time"
	KeyLastCycleTime    = "last-cycle-time"
)

// SnapshotKeys is the exact set of top-level keys in every published snapshot.
var SnapshotKeys = []string{KeyStatus, KeyCurrentRepo, KeyRepos, KeyStatistics}

// DaemonStatus describes what the daemon as a whole is doing.
type DaemonStatus string

const (
	StatusStarting DaemonStatus = "starting"
	StatusUpdating DaemonStatus = "updating"
	StatusSleeping DaemonStatus = "sleeping"
	StatusIdle     DaemonStatus = "idle"
	StatusStopped  DaemonStatus = "stopped"
)

// DaemonStatuses lists every valid DaemonStatus.
var DaemonStatuses = []DaemonStatus{StatusStarting, StatusUpdating, StatusSleeping, StatusIdle, StatusStopped}

// ParseDaemonStatus converts a token into a DaemonStatus, rejecting unknown values.
func ParseDaemonStatus(s string) (DaemonStatus, error) {
	for _, v := range DaemonStatuses {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown daemon status %q", s)
}

// Valid reports whether s is one of the known daemon statuses.
func (s DaemonStatus) Valid() bool {
	_, err := ParseDaemonStatus(string(s))
	return err == nil
}

func (s DaemonStatus) String() string { return string(s) }

// UnmarshalText rejects unknown tokens when decoding a document.
func (s *DaemonStatus) UnmarshalText(b []byte) error {
	v, err := ParseDaemonStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// RepoStatus is the processing state of a single repository.
type RepoStatus string

const (
	RepoUpdating RepoStatus = "updating"
	RepoFailed   RepoStatus = "failed"
	RepoOK       RepoStatus = "ok"
)

// RepoStatuses lists every valid RepoStatus.
var RepoStatuses = []RepoStatus{RepoUpdating, RepoFailed, RepoOK}

// ParseRepoStatus converts a token into a RepoStatus, rejecting unknown values.
func ParseRepoStatus(s string) (RepoStatus, error) {
	for _, v := range RepoStatuses {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown repository status %q", s)
}

// Valid reports whether s is one of the known repository statuses.
func (s RepoStatus) Valid() bool {
	_, err := ParseRepoStatus(string(s))
	return err == nil
}

// Terminal reports whether s is a final outcome.
func (s RepoStatus) Terminal() bool { return s == RepoFailed || s == RepoOK }

func (s RepoStatus) String() string { return string(s) }

// UnmarshalText rejects unknown tokens when decoding a document.
func (s *RepoStatus) UnmarshalText(b []byte) error {
	v, err := ParseRepoStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// RepoOutcome records one repository's processing within a cycle.
type RepoOutcome struct {
	Name      string     `json:"name"`
	HumanName string     `json:"human-name"`
	Status    RepoStatus `json:"status"`
}

// Statistics holds cycle timing in seconds. Nil means unknown.
type Statistics struct {
	CurrentCycleTime *float64 `json:"current-cycle-time"`
	LastCycleTime    *float64 `json:"last-cycle-time"`
}

// Snapshot is the complete published state at a point in time.
// Absent values encode as JSON null; the four keys are always present.
type Snapshot struct {
	Status      DaemonStatus  `json:"status"`
	CurrentRepo *RepoOutcome  `json:"current-repo"`
	Repos       []RepoOutcome `json:"repos"`
	Statistics  Statistics    `json:"statistics"`
}

// Validate checks the snapshot is well formed: a known daemon status, an
// in-flight repository (if any) still updating, and a non-nil history of
// terminal outcomes.
func (s Snapshot) Validate() error {
	if !s.Status.Valid() {
		return fmt.Errorf("invalid daemon status %q", s.Status)
	}
	if s.CurrentRepo != nil && s.CurrentRepo.Status != RepoUpdating {
		return fmt.Errorf("current repository %q has status %q, want %q", s.CurrentRepo.Name, s.CurrentRepo.Status, RepoUpdating)
	}
	if s.Repos == nil {
		return fmt.Errorf("repository history is nil")
	}
	for i, r := range s.Repos {
		if !r.Status.Terminal() {
			return fmt.Errorf("repository history entry %d (%q) has non-terminal status %q", i, r.Name, r.Status)
		}
	}
	return nil
}

// mustValidate is the sinks' guard against programming errors.
func mustValidate(s Snapshot) {
	if err := s.Validate(); err != nil {
		panic("reporter: malformed snapshot: " + err.Error())
	}
}

// Clone returns a deep copy sharing no memory with s.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{Status: s.Status}
	if s.CurrentRepo != nil {
		r := *s.CurrentRepo
		out.CurrentRepo = &r
	}
	if s.Repos != nil {
		out.Repos = make([]RepoOutcome, len(s.Repos))
		copy(out.Repos, s.Repos)
	}
	if s.Statistics.CurrentCycleTime != nil {
		v := *s.Statistics.CurrentCycleTime
		out.Statistics.CurrentCycleTime = &v
	}
	if s.Statistics.LastCycleTime != nil {
		v := *s.Statistics.LastCycleTime
		out.Statistics.LastCycleTime = &v
	}
	return out
}

// Fields renders the snapshot as a generic mapping keyed by the document
// field names. Absent values are untyped nil.
func (s Snapshot) Fields() map[string]any {
	repos := make([]any, 0, len(s.Repos))
	for _, r := range s.Repos {
		repos = append(repos, r.fields())
	}
	var current any
	if s.CurrentRepo != nil {
		current = s.CurrentRepo.fields()
	}
	return map[string]any{
		KeyStatus:      string(s.Status),
		KeyCurrentRepo: current,
		KeyRepos:       repos,
		KeyStatistics: map[string]any{
			KeyCurrentCycleTime: floatOrNil(s.Statistics.CurrentCycleTime),
			KeyLastCycleTime:    floatOrNil(s.Statistics.LastCycleTime),
		},
	}
}

func (r RepoOutcome) fields() map[string]any {
	return map[string]any{
		KeyRepoName:      r.Name,
		KeyRepoHumanName: r.HumanName,
		KeyRepoStatus:    string(r.Status),
	}
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// DecodeSnapshot parses a published document, requiring exactly the four
// top-level keys and known status tokens.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := checkKeys(raw); err != nil {
		return Snapshot{}, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var s Snapshot
	if err := dec.Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

func checkKeys(raw map[string]json.RawMessage) error {
	var missing []string
	for _, k := range SnapshotKeys {
		if _, ok := raw[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("snapshot missing keys: %s", strings.Join(missing, ", "))
	}
	if len(raw) != len(SnapshotKeys) {
		var extra []string
		for k := range raw {
			if !isSnapshotKey(k) {
				extra = append(extra, k)
			}
		}
		sort.Strings(extra)
		return fmt.Errorf("snapshot has unexpected keys: %s", strings.Join(extra, ", "))
	}
	return nil
}

func isSnapshotKey(k string) bool {
	for _, want := range SnapshotKeys {
		if k == want {
			return true
		}
	}
	return false
}
