package scraper

import "testing"

func TestCleanText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"Empty", "", ""},
		{
			"SubPagesPrefix",
			"Sub-Pages:Gallery Judy Alvarez is a character.",
			"Judy Alvarez is a character.",
		},
		{
			"ExpandNotice",
			"This section requires expanding. Click here to add more. Real content here.",
			"Real content here.",
		},
		{
			"HTMLTags",
			"A <b>bold</b> claim with a <a href=\"/wiki/X\">link</a>.",
			"A bold claim with a link.",
		},
		{
			"CollapsedWhitespace",
			"Too   many\n\nspaces  here.",
			"Too many spaces here.",
		},
		{
			"DuplicateSentences",
			"She is a netrunner. She is a netrunner. She lives in Night City.",
			"She is a netrunner. She lives in Night City.",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CleanText(tc.in); got != tc.want {
				t.Errorf("CleanText(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestSplitSections(t *testing.T) {
	t.Run("NoHeadings", func(t *testing.T) {
		intro, sections := SplitSections("Just a lead paragraph.")
		if intro != "Just a lead paragraph." || len(sections) != 0 {
			t.Errorf("got intro=%q sections=%v", intro, sections)
		}
	})

	t.Run("LeadAndSections", func(t *testing.T) {
		text := "Lead text.\n\n== History ==\nOld times.\n\n== Gallery ==\n\n== Notes ==\nA note."
		intro, sections := SplitSections(text)

		if intro != "Lead text.\n\n" {
			t.Errorf("unexpected intro: %q", intro)
		}
		if len(sections) != 2 {
			t.Fatalf("unexpected sections: %+v", sections)
		}
		if sections[0].Title != "History" || sections[0].Content != "Old times." {
			t.Errorf("unexpected section: %+v", sections[0])
		}
		if sections[1].Title != "Notes" || sections[1].Content != "A note." {
			t.Errorf("unexpected section: %+v", sections[1])
		}
	})
}

func TestParseInfobox(t *testing.T) {
	t.Run("NoInfobox", func(t *testing.T) {
		if fields := ParseInfobox("Plain article text with {{Quote|x}} only."); fields != nil {
			t.Errorf("expected nil, got %v", fields)
		}
	})

	t.Run("Unclosed", func(t *testing.T) {
		if fields := ParseInfobox("{{Infobox weapon|name = Malorian"); fields != nil {
			t.Errorf("expected nil for unterminated template, got %v", fields)
		}
	})

	t.Run("Fields", func(t *testing.T) {
		fields := ParseInfobox("Intro. {{Infobox weapon\n|name = '''Malorian Arms 3516'''\n|type = [[Power weapon|Power]]\n|owner = [[Johnny Silverhand]]\n|empty =\n}} Rest.")
		if fields["name"] != "Malorian Arms 3516" {
			t.Errorf("bold markup not stripped: %v", fields["name"])
		}
		if fields["type"] != "Power" || fields["owner"] != "Johnny Silverhand" {
			t.Errorf("links not reduced: %v", fields)
		}
		if _, ok := fields["empty"]; ok {
			t.Error("empty field must be dropped")
		}
	})
}

func TestCapSentences(t *testing.T) {
	text := "One. Two. Three. Four. Five. Six. Seven."

	if got := CapSentences(text, 3); got != "One. Two. Three." {
		t.Errorf("CapSentences(3) = %q", got)
	}
	if got := CapSentences("Short.", 5); got != "Short." {
		t.Errorf("text under the cap must pass through, got %q", got)
	}
}
