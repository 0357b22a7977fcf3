package store

import (
	"testing"
	"time"
)

func TestGetSetExpiry(t *testing.T) {
	s := New()
	s.Set("k", &Value{Type: TypeString, Str: []byte("v")})
	v, ok := s.Get("k")
	if !ok || string(v.Str) != "v" {
		t.Fatalf("unexpected get: %v %v", v, ok)
	}

	s.Set("e", &Value{Type: TypeString, Str: []byte("x"), Deadline: time.Now().Add(-time.Second)})
	if _, ok := s.Get("e"); ok {
		t.Fatal("expected expired key to read as absent")
	}
	if s.Exists("e") {
		t.Fatal("expired key should not exist after lazy deletion")
	}
}

func TestListPushPopRange(t *testing.T) {
	s := New()
	n, err := s.WithList("l", true, func(l *List) int { return l.RPush([]byte("a"), []byte("b"), []byte("c")) })
	if err != nil || n != 3 {
		t.Fatalf("unexpected: %d %v", n, err)
	}

	var popped [][]byte
	s.WithList("l", false, func(l *List) int {
		popped = l.LPop(1)
		return 0
	})
	if len(popped) != 1 || string(popped[0]) != "a" {
		t.Fatalf("unexpected pop: %v", popped)
	}

	var rng [][]byte
	s.WithList("l", false, func(l *List) int {
		rng = l.Range(-2, -1)
		return 0
	})
	if len(rng) != 2 || string(rng[0]) != "b" || string(rng[1]) != "c" {
		t.Fatalf("unexpected range: %v", rng)
	}
}

func TestWrongTypeError(t *testing.T) {
	s := New()
	s.Set("k", &Value{Type: TypeString, Str: []byte("v")})
	_, err := s.WithList("k", false, func(l *List) int { return 0 })
	if err == nil {
		t.Fatal("expected wrong-type error")
	}
}

func TestKeysGlob(t *testing.T) {
	s := New()
	s.Set("foo", &Value{Type: TypeString})
	s.Set("foobar", &Value{Type: TypeString})
	s.Set("baz", &Value{Type: TypeString})
	got := s.Keys("foo*")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %v", got)
	}
}

func TestMatchGlob(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"*", "anything", true},
		{"h?llo", "hello", true},
		{"h?llo", "hllo", false},
		{"h[ae]llo", "hallo", true},
		{"h[ae]llo", "hillo", false},
		{"h[^e]llo", "hallo", true},
		{"h[^e]llo", "hello", false},
		{"a*b*c", "aXbYc", true},
	}
	for _, c := range cases {
		if got := MatchGlob(c.pattern, c.s); got != c.want {
			t.Errorf("MatchGlob(%q, %q) = %v, want %v", c.pattern, c.s, got, c.want)
		}
	}
}
