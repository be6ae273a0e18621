package zipx

import (
	"archive/zip"
	"bytes"
	"errors"
	"testing"
)

type entry struct {
	name string
	body string
}

func buildZip(t *testing.T, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("创建 zip 条目失败：%v", err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			t.Fatalf("写 zip 条目失败：%v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("关闭 zip 失败：%v", err)
	}
	return buf.Bytes()
}

func TestFirstSubtitle_PicksSRTAndFixesLineEndings(t *testing.T) {
	payload := buildZip(t,
		entry{"movie.nfo", "nfo"},
		entry{"movie.srt", "1\r\n00:00:01,000 --> 00:00:02,000\r\nΓεια σου\r\n"},
		entry{"other.srt", "second"},
	)
	got, err := FirstSubtitle(payload, ".srt")
	if err != nil {
		t.Fatalf("FirstSubtitle 失败：%v", err)
	}
	want := "1\n00:00:01,000 --> 00:00:02,000\nΓεια σου\n"
	if string(got) != want {
		t.Fatalf("内容不符合预期：got=%q want=%q", got, want)
	}
}

func TestFirstSubtitle_ExtensionCaseInsensitive(t *testing.T) {
	payload := buildZip(t, entry{"dir/", ""}, entry{"dir/EP01.SRT", "x"})
	got, err := FirstSubtitle(payload, ".srt")
	if err != nil {
		t.Fatalf("FirstSubtitle 失败：%v", err)
	}
	if string(got) != "x" {
		t.Fatalf("期望读到大写扩展名条目，got=%q", got)
	}
}

func TestFirstSubtitle_NoSRTIsAbsentNotError(t *testing.T) {
	payload := buildZip(t, entry{"movie.nfo", "nfo"}, entry{"readme.txt", "hi"})
	got, err := FirstSubtitle(payload, ".srt")
	if err != nil {
		t.Fatalf("期望无错误，got=%v", err)
	}
	if got != nil {
		t.Fatalf("期望 nil 内容，got=%q", got)
	}
}

func TestFirstSubtitle_NotAZip(t *testing.T) {
	_, err := FirstSubtitle([]byte("<html>not a zip</html>"), ".srt")
	if err == nil {
		t.Fatalf("期望返回错误")
	}
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("期望 ErrMalformed，got=%v", err)
	}
	var me *MalformedError
	if !errors.As(err, &me) || me.Err == nil {
		t.Fatalf("期望 *MalformedError 且携带底层错误，got=%T %v", err, err)
	}
}

func TestFirstSubtitle_Empty(t *testing.T) {
	if _, err := FirstSubtitle(nil, ".srt"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("期望空载荷为 ErrMalformed，got=%v", err)
	}
}
