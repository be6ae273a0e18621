package textnorm

import (
	"bytes"
	"testing"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"The.Wire", "the wire"},
		{"The_Wire", "the wire"},
		{"  The -- Wire  ", "the wire"},
		{"Grey's Anatomy", "greys anatomy"},
		{"Marvel's Agents of S.H.I.E.L.D.", "marvels agents of s h i e l d"},
		{"Pokémon", "pokemon"},
		{"CSI: Miami", "csi miami"},
		{"Το Νησί", "το νησι"},
		{"bad\xff", ""},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Fatalf("Normalize(%q) 期望 %q，实际 %q", c.in, c.want, got)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"The.Wire", "Grey's Anatomy", "  x  ", "", "Ελληνικά (2019)", "a.-_b", "Mr. Robot: eps1.0_hellofriend.mov",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Fatalf("Normalize 不幂等：input=%q once=%q twice=%q", in, once, twice)
		}
	}
}

func TestNormalizeReleaseGroup(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"lol[ettv]", "LOL"},
		{" afg ", "AFG"},
		{"GroupX-HEVC", "GROUPX-HEVC"},
		{"x264-DIMENSION[rarbg]", "X264-DIMENSION"},
		{"[a[b]]", ""},
		{"bad\xff", ""},
		{"", ""},
	}
	for _, c := range cases {
		got := NormalizeReleaseGroup(c.in)
		if got != c.want {
			t.Fatalf("NormalizeReleaseGroup(%q) 期望 %q，实际 %q", c.in, c.want, got)
		}
		if again := NormalizeReleaseGroup(got); again != got {
			t.Fatalf("NormalizeReleaseGroup 不幂等：input=%q once=%q twice=%q", c.in, got, again)
		}
	}
}

func TestFixLineEndings(t *testing.T) {
	in := []byte("1\r\n00:00:01,000 --> 00:00:02,000\r\nΓεια\r\rX\n")
	got := FixLineEndings(in)
	if want := "1\n00:00:01,000 --> 00:00:02,000\nΓεια\n\nX\n"; string(got) != want {
		t.Fatalf("换行统一不符合预期：%q", got)
	}
	if again := FixLineEndings(got); !bytes.Equal(again, got) {
		t.Fatalf("FixLineEndings 不幂等：%q", again)
	}
	if len(FixLineEndings(nil)) != 0 {
		t.Fatalf("nil 输入应返回空")
	}
}
