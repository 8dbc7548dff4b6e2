package keys

import "testing"

func TestEntityKeys(t *testing.T) {
	tests := []struct {
		name string
		got  Key
		want Key
	}{
		{"user", User("u_1"), Key{PK: "USER#u_1", SK: "PROFILE"}},
		{"email", Email("a@b.io"), Key{PK: "EMAIL#a@b.io", SK: "USER"}},
		{"post", Post("p_1"), Key{PK: "POST#p_1", SK: "META"}},
		{"like", Like("p_1", "u_1"), Key{PK: "POST#p_1", SK: "LIKE#USER#u_1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, tt.got)
			}
		})
	}
}

func TestFeedSK_SortsByTime(t *testing.T) {
	older := FeedSK("2024-01-01T00:00:00Z", "p_a")
	newer := FeedSK("2024-06-01T00:00:00Z", "p_b")
	if !(older < newer) {
		t.Errorf("expected %q to sort before %q", older, newer)
	}
}

func TestFeedSK_IDBreaksTies(t *testing.T) {
	a := FeedSK("2024-01-01T00:00:00Z", "p_a")
	b := FeedSK("2024-01-01T00:00:00Z", "p_b")
	if a == b {
		t.Error("expected distinct sort keys for distinct posts")
	}
	if !(a < b) {
		t.Errorf("expected %q to sort before %q", a, b)
	}
}

func TestTimelineRetweetSK_MatchesPrefix(t *testing.T) {
	sk := TimelineRetweetSK("p_orig", "2024-01-01T00:00:00Z", "p_copy")
	prefix := RetweetPrefix("p_orig")

	if len(sk) < len(prefix) || sk[:len(prefix)] != prefix {
		t.Errorf("expected %q to have prefix %q", sk, prefix)
	}
}

func TestRetweetPrefix_NoPartialIDMatch(t *testing.T) {
	// A retweet of p_10 must not match the prefix for p_1.
	sk := TimelineRetweetSK("p_10", "2024-01-01T00:00:00Z", "p_copy")
	prefix := RetweetPrefix("p_1")

	if sk[:len(prefix)] == prefix {
		t.Errorf("prefix %q must not match %q", prefix, sk)
	}
}

func TestTimelineKeys(t *testing.T) {
	if got := TimelinePK("u_1"); got != "USER#u_1" {
		t.Errorf("expected USER#u_1, got %q", got)
	}
	if got := TimelinePostSK("t", "p"); got != "POST#t#p" {
		t.Errorf("expected POST#t#p, got %q", got)
	}
}
