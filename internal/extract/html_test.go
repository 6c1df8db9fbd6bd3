package extract

import (
	"reflect"
	"strings"
	"testing"
)

const samplePage = `<!DOCTYPE html>
<html><head><title> Studijní oddělení </title><style>.x{}</style></head>
<body>
<header><a href="/">Domů</a></header>
<nav><a href="/soubor/rad.pdf">Studijní řád</a></nav>
<main>
  <h1>Harmonogram</h1>
  <p>Zápis do 2. ročníku probíhá <b>v září</b>.</p>
  <script>track()</script>
  <ul><li>Termín 1</li><li>Termín 2</li></ul>
  <a href="files/harmonogram.pdf">PDF</a>
</main>
<footer>© UHK</footer>
</body></html>`

func TestPage_MainTextPrefersMain(t *testing.T) {
	page, err := ParseHTML([]byte(samplePage))
	if err != nil {
		t.Fatal(err)
	}
	got := page.MainText()
	want := "Harmonogram\nZápis do 2. ročníku probíhá v září.\nTermín 1\nTermín 2\nPDF"
	if got != want {
		t.Errorf("MainText() =\n%q\nwant\n%q", got, want)
	}
	for _, noise := range []string{"track()", "Domů", "© UHK", "Studijní řád"} {
		if strings.Contains(got, noise) {
			t.Errorf("noise %q leaked into text", noise)
		}
	}
}

func TestPage_HrefsIncludeNavigation(t *testing.T) {
	page, err := ParseHTML([]byte(samplePage))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/", "/soubor/rad.pdf", "files/harmonogram.pdf"}
	if got := page.Hrefs(); !reflect.DeepEqual(got, want) {
		t.Errorf("Hrefs() = %v, want %v", got, want)
	}
	if page.Title() != "Studijní oddělení" {
		t.Errorf("Title() = %q", page.Title())
	}
}

func TestPage_MainTextFallsBackToBody(t *testing.T) {
	page, err := ParseHTML([]byte(`<html><body><div>Kontakt</div><form><input value="x">Hledat</form></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	if got := page.MainText(); got != "Kontakt" {
		t.Errorf("MainText() = %q", got)
	}
}
