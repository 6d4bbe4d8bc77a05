package provider

import (
	"reflect"
	"testing"
)

func TestSegmentsFromWordsCoalescesOnPunctuation(t *testing.T) {
	words := []Word{
		{Text: "Hello", Start: 0.0, End: 0.4, Speaker: "spk-0"},
		{Text: "there.", Start: 0.4, End: 0.8, Speaker: "spk-0"},
		{Text: "How", Start: 1.0, End: 1.2, Speaker: "spk-1"},
		{Text: "are", Start: 1.2, End: 1.4, Speaker: "spk-1"},
		{Text: "you?", Start: 1.4, End: 1.8, Speaker: "spk-1"},
		{Text: "Bye", Start: 2.0, End: 2.2, Speaker: "spk-0"},
	}

	segments := SegmentsFromWords(words, "segment")
	if len(segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(segments))
	}

	texts := []string{segments[0].Text, segments[1].Text, segments[2].Text}
	want := []string{"Hello there.", "How are you?", "Bye"}
	if !reflect.DeepEqual(texts, want) {
		t.Errorf("texts = %v, want %v", texts, want)
	}
	if segments[0].Start != 0.0 || segments[0].End != 0.8 {
		t.Errorf("segment 1 span = [%v, %v], want [0, 0.8]", segments[0].Start, segments[0].End)
	}
	if segments[1].Speaker != "spk-1" {
		t.Errorf("segment 2 speaker = %q, want spk-1", segments[1].Speaker)
	}
	if segments[2].ID != 3 {
		t.Errorf("segment ids must be sequential, got %d", segments[2].ID)
	}
}

func TestSegmentsFromWordsWordGranularity(t *testing.T) {
	words := []Word{
		{Text: "one.", Start: 0, End: 1},
		{Text: "two.", Start: 1, End: 2},
	}
	segments := SegmentsFromWords(words, "word")
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want one per word", len(segments))
	}
	if segments[0].Text != "one." || segments[1].Text != "two." {
		t.Errorf("word segments carry raw word text, got %q %q", segments[0].Text, segments[1].Text)
	}
}

func TestSingleSegmentPlaceholder(t *testing.T) {
	segments := SingleSegment("   ")
	if len(segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(segments))
	}
	if segments[0].Text != "[empty transcript]" {
		t.Errorf("text = %q, want placeholder", segments[0].Text)
	}
	if segments[0].Start != 0 || segments[0].End != 0 {
		t.Error("collapsed segment must be zero-duration")
	}
}
