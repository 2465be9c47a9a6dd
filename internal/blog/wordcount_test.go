package blog

import "testing"

func TestWordCount(t *testing.T) {
	t.Parallel()

	cases := map[string]int{
		"":                                   0,
		"   ":                                0,
		"hello world":                        2,
		"<p>포핸드 탑스핀의   원리</p>":             3,
		"<h2>One</h2>\n<p>two three</p>":     3,
		"<b>go</b>lang":                      1,
		"<ul><li>a</li> <li>b</li></ul>":     2,
		`<img src="x.png" alt="not counted">`: 0,
	}

	for input, want := range cases {
		if got := WordCount(input); got != want {
			t.Errorf("WordCount(%q) = %d, want %d", input, got, want)
		}
	}
}
