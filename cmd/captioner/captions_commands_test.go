package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"captioner/internal/captions"
	"captioner/internal/subtitles"
)

func sampleCaptions() []captions.Caption {
	return []captions.Caption{
		{ID: "aaaa1111-0000-4000-8000-000000000001", Text: "First line", Start: 1, End: 2.5},
		{ID: "bbbb2222-0000-4000-8000-000000000002", Text: "Second line", Start: 3, End: 4},
	}
}

func TestCaptionsList(t *testing.T) {
	path := writeCaptionDoc(t, t.TempDir(), sampleCaptions())

	out, _, err := runCLI(t, []string{"captions", "list", path}, "")
	if err != nil {
		t.Fatalf("captions list: %v", err)
	}
	for _, want := range []string{"aaaa1111", "First line", "00:00:01.000", "1.50s", "Second line"} {
		requireContains(t, out, want)
	}

	out, _, err = runCLI(t, []string{"captions", "list", path, "--json"}, "")
	if err != nil {
		t.Fatalf("captions list --json: %v", err)
	}
	requireContains(t, out, `"text": "Second line"`)
}

func TestCaptionsEditing(t *testing.T) {
	path := writeCaptionDoc(t, t.TempDir(), sampleCaptions())

	steps := []struct {
		name string
		args []string
		want string
	}{
		{"add", []string{"captions", "add", path, "--text", "Inserted", "--at", "0:05", "--end", "6.5"}, "Added caption"},
		{"retype by prefix", []string{"captions", "edit", path, "bbbb", "--text", "Second, edited"}, `"Second, edited"`},
		{"retime by index", []string{"captions", "edit", path, "1", "--start", "0.5", "--end", "2"}, "00:00:00.500-00:00:02.000"},
		{"move", []string{"captions", "edit", path, "aaaa", "--move-to", "10"}, "00:00:10.000-00:00:11.500"},
		{"duplicate", []string{"captions", "duplicate", path, "aaaa"}, "Duplicated caption aaaa1111"},
		{"delete", []string{"captions", "delete", path, "bbbb"}, "Deleted caption bbbb2222"},
		{"shift", []string{"captions", "shift", path, "--by", "-0.5"}, "Shifted 3 captions by -0.500s"},
	}
	for _, step := range steps {
		out, _, err := runCLI(t, step.args, "")
		if err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		requireContains(t, out, step.want)
	}

	list := readCaptionDoc(t, path)
	if len(list) != 3 {
		t.Fatalf("expected 3 captions, got %+v", list)
	}
	want := []struct {
		text  string
		start float64
	}{
		{"Inserted", 4.5},
		{"First line", 9.5},
		{"First line", 11},
	}
	for i, w := range want {
		if list[i].Text != w.text || list[i].Start != w.start {
			t.Fatalf("caption %d = %+v, want %s at %.1f", i, list[i], w.text, w.start)
		}
	}
}

func TestCaptionsEditRejectsInvalidSpan(t *testing.T) {
	path := writeCaptionDoc(t, t.TempDir(), sampleCaptions())

	if _, _, err := runCLI(t, []string{"captions", "edit", path, "aaaa", "--end", "0.5"}, ""); err == nil {
		t.Fatal("expected an end before start to fail")
	}
	if _, _, err := runCLI(t, []string{"captions", "edit", path, "aaaa"}, ""); err == nil {
		t.Fatal("expected an edit without changes to fail")
	}
	if _, _, err := runCLI(t, []string{"captions", "shift", path, "--by", "-2"}, ""); err == nil {
		t.Fatal("expected a shift before zero to fail")
	}
	list := readCaptionDoc(t, path)
	if list[0].Start != 1 || list[0].End != 2.5 {
		t.Fatalf("failed edits changed the file: %+v", list[0])
	}
}

func TestCaptionsEditBackup(t *testing.T) {
	path := writeCaptionDoc(t, t.TempDir(), sampleCaptions())

	out, _, err := runCLI(t, []string{"captions", "delete", path, "aaaa", "--backup"}, "")
	if err != nil {
		t.Fatalf("captions delete --backup: %v", err)
	}
	requireContains(t, out, "Backup written to "+path+".bak")

	backup, err := os.Open(path + ".bak")
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer backup.Close()
	doc, err := subtitles.Read(backup, subtitles.FormatJSON)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if len(doc.Captions) != 2 {
		t.Fatalf("backup should keep both captions, got %d", len(doc.Captions))
	}
	if got := readCaptionDoc(t, path); len(got) != 1 {
		t.Fatalf("edited document should keep one caption, got %d", len(got))
	}
}

func TestSubsConvert(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	path := writeCaptionDoc(t, dir, sampleCaptions())

	out, _, err := runCLI(t, []string{"subs", path, "--format", "srt"}, env.configPath)
	if err != nil {
		t.Fatalf("subs: %v", err)
	}
	target := filepath.Join(dir, "clip.srt")
	requireContains(t, out, "Wrote 2 captions to "+target)

	list := readCaptionDoc(t, target)
	if len(list) != 2 || list[1].Text != "Second line" {
		t.Fatalf("unexpected srt round trip %+v", list)
	}

	if _, _, err := runCLI(t, []string{"subs", path, "--format", "docx"}, env.configPath); err == nil {
		t.Fatal("expected unknown format to fail")
	}
}

func TestSegmentFromTokens(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := t.TempDir()
	tokens := filepath.Join(dir, "clip.tokens.json")
	writeTokensFile(t, tokens, "one two three four five")

	out, _, err := runCLI(t, []string{"segment", tokens, "--words", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	requireContains(t, out, "Wrote 3 captions")
	requireContains(t, out, "fixed segmentation from 5 words")

	list := readCaptionDoc(t, filepath.Join(dir, "clip.captions.json"))
	if len(list) != 3 || list[0].Text != "one two" || list[2].Text != "five" {
		t.Fatalf("unexpected segmentation %+v", list)
	}
}

func writeTokensFile(t *testing.T, path, text string) {
	t.Helper()
	words := strings.Fields(text)
	result := transcribeResult(words)
	if err := writeTokens(path, result); err != nil {
		t.Fatalf("write tokens: %v", err)
	}
}
