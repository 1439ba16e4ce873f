package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/abelbrown/skyrank/internal/backend"
	"github.com/abelbrown/skyrank/internal/mixer"
	"github.com/abelbrown/skyrank/internal/model"
)

const testConfig = `
mix:
  name: test
  limit: 4
  entries:
    - kind: timeline
      label: Following
      percent: 50
    - kind: custom
      label: Art
      uri: at://feed/art
      percent: 50
log:
  level: error
`

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// runCLI executes the root command in-process.
func runCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Cleanup(backend.Reset)

	cmd := newRootCmd()
	var outBuf, errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func writeJSONFile(t *testing.T, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", name, err)
	}
	return writeFile(t, name, string(data))
}

func timelineItem(uri string, created time.Time) model.TimelineItem {
	return model.TimelineItem{Post: model.PostView{
		URI:    uri,
		Author: model.Author{Handle: "alice.test"},
		Record: model.Record{Text: "post " + uri, CreatedAt: created.Format(time.RFC3339)},
	}}
}

// pagesFixture has 60 timeline posts (more than one fetch) and 3 art posts.
func pagesFixture(t *testing.T) string {
	t.Helper()
	var timeline, art []model.TimelineItem
	for i := 0; i < 60; i++ {
		timeline = append(timeline, timelineItem(fmt.Sprintf("at://t/%d", i), base.Add(-time.Duration(i)*time.Minute)))
	}
	for i := 0; i < 3; i++ {
		art = append(art, timelineItem(fmt.Sprintf("at://a/%d", i), base.Add(-time.Duration(i)*time.Minute-30*time.Second)))
	}
	return writeJSONFile(t, "pages.json", map[string][]model.TimelineItem{
		model.TimelineKey: timeline,
		"at://feed/art":   art,
	})
}

func feedURIs(res mixer.Result) []string {
	out := make([]string, len(res.Feed))
	for i, it := range res.Feed {
		out[i] = it.Post.URI
	}
	return out
}

func TestRootShowsVersion(t *testing.T) {
	stdout, _, err := runCLI(t, "--version")
	if err != nil {
		t.Fatalf("--version failed: %v", err)
	}
	if !strings.Contains(stdout, "skyrank version") {
		t.Errorf("expected version output, got: %s", stdout)
	}
}

func TestStrategiesLists(t *testing.T) {
	cfg := writeFile(t, "skyrank.yaml", testConfig)
	stdout, _, err := runCLI(t, "--config", cfg, "strategies")
	if err != nil {
		t.Fatalf("strategies failed: %v", err)
	}
	for _, name := range []string{"newest", "trending", "wilson_score", "score", "controversial"} {
		if !strings.Contains(stdout, name) {
			t.Errorf("missing strategy %q in: %s", name, stdout)
		}
	}
}

func TestMixFromFixture(t *testing.T) {
	cfg := writeFile(t, "skyrank.yaml", testConfig)
	pages := pagesFixture(t)

	stdout, stderr, err := runCLI(t, "--config", cfg, "--json", "mix", "--pages", pages)
	if err != nil {
		t.Fatalf("mix failed: %v\n%s", err, stderr)
	}

	var res mixer.Result
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("output is not a mix result: %v\n%s", err, stdout)
	}

	want := []string{"at://t/0", "at://a/0", "at://t/1", "at://a/1"}
	got := feedURIs(res)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("feed = %v, want %v", got, want)
	}
	if res.Cursors[model.TimelineKey] != "50" {
		t.Errorf("expected timeline cursor 50, got %v", res.Cursors)
	}
	if _, ok := res.Cursors["at://feed/art"]; ok {
		t.Errorf("exhausted source should have no cursor, got %v", res.Cursors)
	}
	for _, it := range res.Feed {
		if it.FeedSource == nil {
			t.Errorf("%s is not tagged with its source", it.Post.URI)
		}
	}
}

func TestMixContinuesFromStoredCursors(t *testing.T) {
	cfg := writeFile(t, "skyrank.yaml", testConfig)
	pages := pagesFixture(t)
	db := filepath.Join(t.TempDir(), "skyrank.db")

	if _, stderr, err := runCLI(t, "--config", cfg, "--json", "mix", "--pages", pages, "--db", db); err != nil {
		t.Fatalf("first mix failed: %v\n%s", err, stderr)
	}

	stdout, stderr, err := runCLI(t, "--config", cfg, "--json", "mix", "--pages", pages, "--db", db)
	if err != nil {
		t.Fatalf("second mix failed: %v\n%s", err, stderr)
	}
	var res mixer.Result
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("bad output: %v", err)
	}
	got := strings.Join(feedURIs(res), ",")
	if !strings.Contains(got, "at://t/50") || strings.Contains(got, "at://t/0,") {
		t.Errorf("second page should continue the timeline, got %s", got)
	}

	// --reset starts over
	stdout, _, err = runCLI(t, "--config", cfg, "--json", "mix", "--pages", pages, "--db", db, "--reset")
	if err != nil {
		t.Fatalf("reset mix failed: %v", err)
	}
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("bad output: %v", err)
	}
	if len(res.Feed) == 0 || res.Feed[0].Post.URI != "at://t/0" {
		t.Errorf("reset should start from the first page, got %v", feedURIs(res))
	}
}

func TestMixTextOutput(t *testing.T) {
	cfg := writeFile(t, "skyrank.yaml", testConfig)
	stdout, _, err := runCLI(t, "--config", cfg, "mix", "--pages", pagesFixture(t), "--limit", "2")
	if err != nil {
		t.Fatalf("mix failed: %v", err)
	}
	if !strings.Contains(stdout, "post at://t/0") {
		t.Errorf("expected rendered feed, got: %s", stdout)
	}
}

func TestMixBadFixture(t *testing.T) {
	cfg := writeFile(t, "skyrank.yaml", testConfig)
	bad := writeFile(t, "pages.json", "{not json")
	if _, _, err := runCLI(t, "--config", cfg, "mix", "--pages", bad); err == nil {
		t.Error("expected error for malformed fixture")
	}
}

func TestRankByScore(t *testing.T) {
	cfg := writeFile(t, "skyrank.yaml", testConfig)
	input := writeFile(t, "posts.json", `[
		{"id": "low", "like_count": 1, "downvote_count": 3},
		{"id": "high", "likeCount": 9},
		{"id": "mid", "like_count": "4"}
	]`)

	stdout, _, err := runCLI(t, "--config", cfg, "--json", "rank", "--strategy", "score", "--input", input)
	if err != nil {
		t.Fatalf("rank failed: %v", err)
	}
	var posts []model.PostMetrics
	if err := json.Unmarshal([]byte(stdout), &posts); err != nil {
		t.Fatalf("bad output: %v\n%s", err, stdout)
	}
	var got []string
	for _, p := range posts {
		got = append(got, p.ID)
	}
	if strings.Join(got, ",") != "high,mid,low" {
		t.Errorf("order = %v, want high,mid,low", got)
	}
}

func TestRankTrendingUsesNowFlag(t *testing.T) {
	cfg := writeFile(t, "skyrank.yaml", testConfig)
	input := writeFile(t, "posts.json", `[
		{"id": "old", "created_at": "2025-03-01T00:00:00Z", "like_count": 24},
		{"id": "fresh", "created_at": "2025-03-01T11:00:00Z", "like_count": 5}
	]`)

	stdout, _, err := runCLI(t, "--config", cfg, "rank", "-s", "trending", "-i", input, "--now", "2025-03-01T12:00:00Z")
	if err != nil {
		t.Fatalf("rank failed: %v", err)
	}
	if !strings.Contains(stdout, "Ranked by trending") {
		t.Errorf("missing header: %s", stdout)
	}
	if strings.Index(stdout, "fresh") > strings.Index(stdout, "old") {
		t.Errorf("5/h should outrank 2/h:\n%s", stdout)
	}
}

func TestRankTop(t *testing.T) {
	cfg := writeFile(t, "skyrank.yaml", testConfig)
	input := writeFile(t, "posts.json", `[{"id":"a","like_count":1},{"id":"b","like_count":3},{"id":"c","like_count":2}]`)

	stdout, _, err := runCLI(t, "--config", cfg, "--json", "rank", "-s", "score", "-i", input, "-n", "2")
	if err != nil {
		t.Fatalf("rank failed: %v", err)
	}
	var posts []model.PostMetrics
	if err := json.Unmarshal([]byte(stdout), &posts); err != nil {
		t.Fatalf("bad output: %v", err)
	}
	if len(posts) != 2 || posts[0].ID != "b" || posts[1].ID != "c" {
		t.Errorf("expected top 2 by score [b c], got %+v", posts)
	}
}

func TestRankStoredSnapshots(t *testing.T) {
	cfg := writeFile(t, "skyrank.yaml", testConfig)
	db := filepath.Join(t.TempDir(), "skyrank.db")
	if _, _, err := runCLI(t, "--config", cfg, "mix", "--pages", pagesFixture(t), "--db", db); err != nil {
		t.Fatalf("mix failed: %v", err)
	}

	stdout, _, err := runCLI(t, "--config", cfg, "--json", "rank", "-s", "newest", "--db", db)
	if err != nil {
		t.Fatalf("rank failed: %v", err)
	}
	var posts []model.PostMetrics
	if err := json.Unmarshal([]byte(stdout), &posts); err != nil {
		t.Fatalf("bad output: %v", err)
	}
	if len(posts) != 4 || posts[0].ID != "at://t/0" {
		t.Errorf("expected the 4 mixed posts newest first, got %v", posts)
	}
}

func TestRankErrors(t *testing.T) {
	cfg := writeFile(t, "skyrank.yaml", testConfig)
	input := writeFile(t, "posts.json", `[]`)

	if _, _, err := runCLI(t, "--config", cfg, "rank", "-s", "random", "-i", input); err == nil {
		t.Error("expected error for unknown strategy")
	}
	if _, _, err := runCLI(t, "--config", cfg, "rank", "-s", "score"); err == nil {
		t.Error("expected error without input")
	}
	if _, _, err := runCLI(t, "--config", cfg, "rank", "-i", input, "--now", "yesterday"); err == nil {
		t.Error("expected error for malformed --now")
	}
}

const votesJSON = `[
	{"user_id": "u1", "statement_id": "s1", "value": 1},
	{"user_id": "u1", "statement_id": "s2", "value": -1},
	{"user_id": "u2", "statement_id": "s1", "value": 1},
	{"user_id": "u2", "statement_id": "s2", "value": -1},
	{"user_id": "u3", "statement_id": "s1", "value": -1},
	{"user_id": "u3", "statement_id": "s2", "value": 1}
]`

func TestConsensusFromInput(t *testing.T) {
	cfg := writeFile(t, "skyrank.yaml", testConfig)
	input := writeFile(t, "votes.json", votesJSON)

	stdout, _, err := runCLI(t, "--config", cfg, "--json", "consensus", "--input", input)
	if err != nil {
		t.Fatalf("consensus failed: %v", err)
	}
	var res model.ConsensusResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("bad output: %v\n%s", err, stdout)
	}
	if res.TotalParticipants != 3 || len(res.Statements) != 2 {
		t.Errorf("unexpected totals: %+v", res)
	}
	if res.ClusterCount != 2 || res.Clusters[0].MemberCount != 2 {
		t.Errorf("expected camps {u1,u2} and {u3}, got %+v", res.Clusters)
	}
}

func TestConsensusTextOutput(t *testing.T) {
	cfg := writeFile(t, "skyrank.yaml", testConfig)
	input := writeFile(t, "votes.json", votesJSON)

	stdout, _, err := runCLI(t, "--config", cfg, "consensus", "-i", input)
	if err != nil {
		t.Fatalf("consensus failed: %v", err)
	}
	if !strings.Contains(stdout, "s1") || !strings.Contains(stdout, "s2") {
		t.Errorf("expected statements in output: %s", stdout)
	}
}

func TestConsensusAccumulatesInDatabase(t *testing.T) {
	cfg := writeFile(t, "skyrank.yaml", testConfig)
	db := filepath.Join(t.TempDir(), "votes.db")

	first := writeFile(t, "first.json", votesJSON)
	if _, _, err := runCLI(t, "--config", cfg, "consensus", "-i", first, "--db", db); err != nil {
		t.Fatalf("first consensus failed: %v", err)
	}

	// u3 changes their mind; u4 joins
	second := writeFile(t, "second.json", `[
		{"user_id": "u3", "statement_id": "s1", "value": 1},
		{"user_id": "u4", "statement_id": "s1", "value": 0}
	]`)
	stdout, _, err := runCLI(t, "--config", cfg, "--json", "consensus", "-i", second, "--db", db)
	if err != nil {
		t.Fatalf("second consensus failed: %v", err)
	}
	var res model.ConsensusResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("bad output: %v", err)
	}
	if res.TotalParticipants != 4 {
		t.Errorf("expected 4 participants, got %d", res.TotalParticipants)
	}
	s1 := res.Statements[0]
	if s1.AgreeCount != 3 || s1.DisagreeCount != 0 || s1.PassCount != 1 {
		t.Errorf("stored vote should be replaced, got %+v", s1)
	}

	// Database alone
	if _, _, err := runCLI(t, "--config", cfg, "consensus", "--db", db); err != nil {
		t.Errorf("consensus from database failed: %v", err)
	}
}

func TestConsensusNeedsVotes(t *testing.T) {
	cfg := writeFile(t, "skyrank.yaml", testConfig)
	if _, _, err := runCLI(t, "--config", cfg, "consensus"); err == nil {
		t.Error("expected error without --input or --db")
	}
}

func TestInvalidConfigFails(t *testing.T) {
	cfg := writeFile(t, "skyrank.yaml", "ranking:\n  strategy: random\n")
	if _, _, err := runCLI(t, "--config", cfg, "strategies"); err == nil {
		t.Error("expected configuration error")
	}
}
