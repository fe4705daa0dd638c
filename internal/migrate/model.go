// Package migrate holds the resumable, checkpointed migration of exported
// posts into ledger notes: record classification, group selection, the
// duplicate guard and the per-group orchestrator.
package migrate

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// retweetPrefix marks a tweet's text as a retweet. The export's "retweeted"
// flag is always false, so the text is the only signal.
const retweetPrefix = "RT @"

// Media is a local attachment of a record.
type Media struct {
	Name string // stable upload name, "<record id>-<file>"
	Path string // resolved file on disk
}

// Record is one exported post. Records are never modified after loading.
type Record struct {
	ID          string
	CreatedAt   time.Time
	Text        string
	Media       []Media
	InReplyToID string
	Client      string // posting client, e.g. "Twitter for iPhone"
}

func (r Record) IsReply() bool {
	return r.InReplyToID != ""
}

func (r Record) IsRetweet() bool {
	return strings.HasPrefix(r.Text, retweetPrefix)
}

// GroupRef describes one group in the export manifest. Records are loaded
// through a Loader only once the group is selected.
type GroupRef struct {
	ID            string // file name in the export, stable across sessions
	ExpectedCount int
	SourceRef     string // global name the file assigns its records to
}

// Settings are the user-chosen filters, persisted under SettingsKey.
type Settings struct {
	IncludeReplies    bool   `json:"includeReplies"`
	IncludeRetweets   bool   `json:"includeRetweets"`
	PreventDuplicates bool   `json:"preventDuplicates"`
	TargetIdentity    string `json:"targetIdentity"`
}

// DefaultSettings is what a fresh session starts from.
func DefaultSettings() Settings {
	return Settings{PreventDuplicates: true}
}

// Progress is the migration checkpoint, persisted under ProgressKey.
type Progress struct {
	FinishedGroups    IDSet  `json:"finishedGroups"`
	ProcessingGroup   string `json:"processingGroup"`
	FinishedRecordIDs IDSet  `json:"finishedRecordIds"`
}

func DefaultProgress() Progress {
	return Progress{
		FinishedGroups:    IDSet{},
		FinishedRecordIDs: IDSet{},
	}
}

// Clone returns a deep copy so callers can't mutate the shared checkpoint.
func (p Progress) Clone() Progress {
	return Progress{
		FinishedGroups:    p.FinishedGroups.Clone(),
		ProcessingGroup:   p.ProcessingGroup,
		FinishedRecordIDs: p.FinishedRecordIDs.Clone(),
	}
}

// IDSet is a set of ids. It is encoded as a sorted JSON array; membership is
// the only query the migration makes.
type IDSet map[string]struct{}

func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Add(id string) {
	s[id] = struct{}{}
}

func (s IDSet) Len() int {
	return len(s)
}

func (s IDSet) Clone() IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Sorted returns the members in lexical order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewIDSet(ids...)
	return nil
}

// Outcome is what happened to one record during a group run.
type Outcome string

const (
	OutcomeSkippedFiltered  Outcome = "skipped-filtered"
	OutcomeSkippedDuplicate Outcome = "skipped-duplicate"
	OutcomePublished        Outcome = "published"
	OutcomeFailed           Outcome = "failed"
)

// Receipt is what the publisher returns for a committed note.
type Receipt struct {
	NoteID string
	TxHash string
	URI    string
}
