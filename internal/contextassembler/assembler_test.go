package contextassembler

import (
	"strings"
	"testing"
	"time"

	"github.com/zenmcp/zen/internal/capability"
	"github.com/zenmcp/zen/internal/conversation"
)

func threadWithTurns(n int) conversation.Thread {
	turns := make([]conversation.Turn, 0, n)
	for i := 0; i < n; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		turns = append(turns, conversation.Turn{
			Role:      role,
			Content:   strings.Repeat("x", 50),
			Timestamp: time.Now(),
		})
	}
	return conversation.Thread{ID: "t1", Turns: turns}
}

func TestAssemble_RetainsAllWhenBudgetIsAmple(t *testing.T) {
	th := threadWithTurns(4)
	got := Assemble(th, 10_000)
	if got.DroppedTurns != 0 {
		t.Errorf("expected no drops, got %d", got.DroppedTurns)
	}
	for i := 0; i < 4; i++ {
		if !strings.Contains(got.Text, th.Turns[i].Content) {
			t.Errorf("expected turn %d content present", i)
		}
	}
}

func TestAssemble_DropsOldestFirstUnderBudget(t *testing.T) {
	th := threadWithTurns(4)
	// Budget fits roughly two rendered turns.
	budget := len(renderTurn(th.Turns[3])) + len(renderTurn(th.Turns[2])) + 5
	got := Assemble(th, budget)

	if got.DroppedTurns == 0 {
		t.Fatal("expected some turns dropped")
	}
	if strings.Contains(got.Text, th.Turns[0].Content) {
		t.Error("expected oldest turn to be dropped first")
	}
	if !strings.Contains(got.Text, th.Turns[3].Content) {
		t.Error("expected newest turn to always be retained")
	}
}

func TestAssemble_ChronologicalOrderPreserved(t *testing.T) {
	th := conversation.Thread{Turns: []conversation.Turn{
		{Role: "user", Content: "first"},
		{Role: "assistant", Content: "second"},
		{Role: "user", Content: "third"},
	}}
	got := Assemble(th, 10_000)

	iFirst := strings.Index(got.Text, "first")
	iSecond := strings.Index(got.Text, "second")
	iThird := strings.Index(got.Text, "third")
	if !(iFirst < iSecond && iSecond < iThird) {
		t.Errorf("expected chronological order, got offsets %d,%d,%d", iFirst, iSecond, iThird)
	}
}

func TestAssemble_EmptyThread(t *testing.T) {
	got := Assemble(conversation.Thread{}, 1000)
	if got.Text != "" || got.DroppedTurns != 0 {
		t.Errorf("expected empty result for empty thread, got %+v", got)
	}
}

func TestAssemble_FileDedupTracksRetainedTurnsOnly(t *testing.T) {
	th := conversation.Thread{Turns: []conversation.Turn{
		{Role: "user", Content: "a", Files: []string{"/a.go"}},
		{Role: "assistant", Content: "b", Files: []string{"/b.go"}},
	}}
	got := Assemble(th, 10_000)
	if _, ok := got.EmbeddedFiles["/a.go"]; !ok {
		t.Errorf("expected /a.go tracked as embedded, got %v", got.EmbeddedFiles)
	}
	if _, ok := got.EmbeddedFiles["/b.go"]; !ok {
		t.Errorf("expected /b.go tracked as embedded, got %v", got.EmbeddedFiles)
	}
}

func TestAssemble_ReattachesMostRecentImagesOnly(t *testing.T) {
	th := conversation.Thread{Turns: []conversation.Turn{
		{Role: "user", Content: "a", Images: []string{"img1.png"}},
		{Role: "assistant", Content: "b", Images: []string{"img2.png"}},
		{Role: "user", Content: "c", Images: []string{"img3.png", "img4.png", "img5.png", "img6.png"}},
	}}
	got := Assemble(th, 10_000)
	if len(got.ReattachImages) != MaxImages {
		t.Fatalf("expected %d images reattached, got %d: %v", MaxImages, len(got.ReattachImages), got.ReattachImages)
	}
	if got.ReattachImages[len(got.ReattachImages)-1] != "img6.png" {
		t.Errorf("expected newest image last in chronological order, got %v", got.ReattachImages)
	}
}

func TestReservesFor_UnknownCategoryFallsBackToBalanced(t *testing.T) {
	got := ReservesFor(capability.Category("NOT_A_CATEGORY"))
	want := defaultReserves[capability.CategoryBalanced]
	if got != want {
		t.Errorf("expected fallback to BALANCED reserves, got %+v", got)
	}
}

func TestHistoryBudgetChars_ZeroContextWindowYieldsZero(t *testing.T) {
	if got := HistoryBudgetChars(0, capability.CategoryFast); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestHistoryBudgetChars_Positive(t *testing.T) {
	got := HistoryBudgetChars(100_000, capability.CategoryBalanced)
	if got <= 0 {
		t.Errorf("expected positive budget, got %d", got)
	}
}

func TestWriteToPrimaryField_EmptyAssembledReturnsContentUnchanged(t *testing.T) {
	got := WriteToPrimaryField(Assembled{}, "hello")
	if got != "hello" {
		t.Errorf("expected passthrough, got %q", got)
	}
}

func TestWriteToPrimaryField_PrependsHistoryBeforeCurrentContent(t *testing.T) {
	assembled := Assembled{Text: "--- user turn () ---\nprior\n"}
	got := WriteToPrimaryField(assembled, "current question")
	if !strings.Contains(got, "prior") || !strings.Contains(got, "current question") {
		t.Fatalf("expected both prior and current content, got %q", got)
	}
	if strings.Index(got, "prior") > strings.Index(got, "current question") {
		t.Error("expected prior history before current content")
	}
}
