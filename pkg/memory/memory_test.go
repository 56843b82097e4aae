package memory

import "testing"

func TestSystemMessageAlwaysIndexZero(t *testing.T) {
	m := New(10, 1000)
	m.SetSystem("you are an assistant")
	m.Append(Message{Role: RoleUser, Content: "hi"})

	msgs := m.Messages()
	if msgs[0].Role != RoleSystem {
		t.Fatalf("expected system message at index 0, got %s", msgs[0].Role)
	}
}

func TestPruneOldestFirstByMessageCount(t *testing.T) {
	m := New(3, 100000)
	m.SetSystem("sys")
	for i := 0; i < 10; i++ {
		m.Append(Message{Role: RoleUser, Content: "hello"})
	}
	if m.Len() > 3 {
		t.Fatalf("expected at most 3 messages, got %d", m.Len())
	}
}

func TestPruneOldestFirstByTokenBudget(t *testing.T) {
	m := New(1000, 20)
	m.SetSystem("s")
	for i := 0; i < 20; i++ {
		m.Append(Message{Role: RoleUser, Content: "this is a moderately long message"})
	}
	msgs := m.Messages()
	total := 0
	for _, msg := range msgs {
		total += estimateTokens(msg)
	}
	if total > 20 {
		t.Errorf("expected estimated tokens <= 20, got %d", total)
	}
}

func TestLastUserEquals(t *testing.T) {
	m := New(10, 1000)
	m.SetSystem("s")
	m.Append(Message{Role: RoleUser, Content: "status"})
	if !m.LastUserEquals("status") {
		t.Errorf("expected LastUserEquals true")
	}
	if m.LastUserEquals("other") {
		t.Errorf("expected LastUserEquals false for different content")
	}
}

func TestLastTurnsBoundsCorrectly(t *testing.T) {
	m := New(1000, 1000000)
	m.SetSystem("s")
	for i := 0; i < 6; i++ {
		m.Append(Message{Role: RoleUser, Content: "u"})
		m.Append(Message{Role: RoleAssistant, Content: "a"})
	}
	turns := m.LastTurns(2)
	count := 0
	for _, msg := range turns {
		if msg.Role == RoleUser || msg.Role == RoleAssistant {
			count++
		}
	}
	if count != 2 {
		t.Errorf("expected 2 turns, got %d", count)
	}
}

func TestClearKeepsSystem(t *testing.T) {
	m := New(10, 1000)
	m.SetSystem("s")
	m.Append(Message{Role: RoleUser, Content: "x"})
	m.Clear()
	msgs := m.Messages()
	if len(msgs) != 1 || msgs[0].Role != RoleSystem {
		t.Errorf("expected only system message after Clear, got %v", msgs)
	}
}
