package fetch

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func docxBytes(text string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, _ := w.Create("word/document.xml")
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	_ = w.Close()
	return buf.Bytes()
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/studium", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body>
<nav><a href="/soubor/rad">Studijní řád</a></nav>
<main><h1>Studium</h1><p>Informace pro studenty prvního ročníku.</p>
<a href="docs/harmonogram.pdf#page=2">Harmonogram</a>
<a href="/soubor/rad">Řád znovu</a>
<a href="https://other.example/x.pdf">Cizí</a>
<a href="mailto:studijni@uhk.cz">Mail</a>
<a href="/kontakt">Kontakt</a>
</main></body></html>`))
	})
	mux.HandleFunc("/soubor/rad", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="/files/rad.docx">Stáhnout</a></body></html>`))
	})
	mux.HandleFunc("/files/rad.docx", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		_, _ = w.Write(docxBytes("Studijní a zkušební řád univerzity"))
	})
	mux.HandleFunc("/soubor/loop", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="/soubor/loop2">Dál</a></body></html>`))
	})
	mux.HandleFunc("/soubor/loop2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="/files/rad.docx">Dál</a></body></html>`))
	})
	mux.HandleFunc("/scan.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("  abc  "))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	mux.HandleFunc("/missing", http.NotFound)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetcher_FetchPage(t *testing.T) {
	srv := newTestServer(t)
	f := New(WithLinkPatterns([]string{"/soubor/"}))

	page, err := f.FetchPage(context.Background(), srv.URL+"/studium")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{srv.URL + "/soubor/rad", srv.URL + "/docs/harmonogram.pdf"}
	if !reflect.DeepEqual(page.DocumentLinks, want) {
		t.Errorf("DocumentLinks = %v, want %v", page.DocumentLinks, want)
	}
	if page.Text != "Studium\nInformace pro studenty prvního ročníku.\nHarmonogram\nŘád znovu\nCizí\nMail\nKontakt" {
		t.Errorf("Text = %q", page.Text)
	}
}

func TestFetcher_FetchPageErrors(t *testing.T) {
	srv := newTestServer(t)
	f := New(WithTimeout(100 * time.Millisecond))

	_, err := f.FetchPage(context.Background(), srv.URL+"/missing")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Errorf("expected StatusError 404, got %v", err)
	}
	if _, err := f.FetchPage(context.Background(), srv.URL+"/slow"); err == nil {
		t.Error("expected timeout error")
	}
}

func TestFetcher_FetchDocumentFollowsDetailPageOnce(t *testing.T) {
	srv := newTestServer(t)
	f := New(WithLinkPatterns([]string{"/soubor/"}))
	ctx := context.Background()

	doc, err := f.FetchDocument(ctx, srv.URL+"/soubor/rad")
	if err != nil {
		t.Fatal(err)
	}
	if doc.URL != srv.URL+"/files/rad.docx" || doc.Text != "Studijní a zkušební řád univerzity" {
		t.Errorf("got %+v", doc)
	}

	_, err = f.FetchDocument(ctx, srv.URL+"/soubor/loop")
	if !errors.Is(err, ErrNoUsableText) {
		t.Errorf("second detail page should stop the walk, got %v", err)
	}
}

func TestFetcher_FetchDocumentShortTextIsNotUsable(t *testing.T) {
	srv := newTestServer(t)
	f := New()
	_, err := f.FetchDocument(context.Background(), srv.URL+"/scan.txt")
	if !errors.Is(err, ErrNoUsableText) {
		t.Errorf("expected ErrNoUsableText, got %v", err)
	}
}

func TestFetcher_MaxBytes(t *testing.T) {
	srv := newTestServer(t)
	f := New(WithMaxBytes(100))
	if _, err := f.FetchPage(context.Background(), srv.URL+"/studium"); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge, got %v", err)
	}
}
