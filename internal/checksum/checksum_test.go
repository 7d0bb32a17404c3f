package checksum

import "testing"

func TestSum(t *testing.T) {
	// sha256("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := Sum([]byte("abc")); got != want {
		t.Errorf("Sum = %s, want %s", got, want)
	}
}

func TestBody_IgnoresLineEndings(t *testing.T) {
	unix := Body([]byte("# Title\n\nSome text.\n"))
	for _, variant := range []string{
		"# Title\r\n\r\nSome text.\r\n",
		"# Title  \n\nSome text.\t\n",
		"# Title\n\nSome text.",
	} {
		if got := Body([]byte(variant)); got != unix {
			t.Errorf("Body(%q) differs from LF form", variant)
		}
	}
	if Body([]byte("# Title\n\nOther text.\n")) == unix {
		t.Error("different bodies should not collide")
	}
}
