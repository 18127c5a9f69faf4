package dispatch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"tgrelay/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestDispatch_MultipartFields(t *testing.T) {
	var gotUsername, gotContent, gotAvatar string
	var gotFile []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotUsername = r.FormValue("username")
		gotContent = r.FormValue("content")
		gotAvatar = r.FormValue("avatar_url")
		if f, _, err := r.FormFile("report.pdf"); err == nil {
			gotFile, _ = io.ReadAll(f)
			f.Close()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := New(Config{Logger: testLogger()})
	results := f.Dispatch(context.Background(), domain.OutboundPayload{
		Username:  "My Chat @alice",
		Content:   "hello",
		AvatarURL: "https://i.ibb.co/abc/42-7.jpg",
		Filename:  "report.pdf",
		FileBytes: []byte("pdfbytes"),
	}, []string{srv.URL})

	if len(results) != 1 || !results[0].OK {
		t.Fatalf("unexpected results: %+v", results)
	}
	if gotUsername != "My Chat @alice" {
		t.Errorf("username = %q", gotUsername)
	}
	if gotContent != "hello" {
		t.Errorf("content = %q", gotContent)
	}
	if gotAvatar != "https://i.ibb.co/abc/42-7.jpg" {
		t.Errorf("avatar_url = %q", gotAvatar)
	}
	if string(gotFile) != "pdfbytes" {
		t.Errorf("file = %q", gotFile)
	}
}

func TestDispatch_OmitsEmptyOptionalFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, ok := r.MultipartForm.Value["avatar_url"]; ok {
			t.Error("avatar_url field present despite empty avatar")
		}
		if len(r.MultipartForm.File) != 0 {
			t.Error("file part present despite no attachment")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(Config{Logger: testLogger()})
	results := f.Dispatch(context.Background(), domain.OutboundPayload{
		Username: "u", Content: "c",
	}, []string{srv.URL})
	if !results[0].OK {
		t.Errorf("result not ok: %+v", results[0])
	}
}

func TestDispatch_IndependentFailures(t *testing.T) {
	// 3 targets, the 2nd fails; 1st and 3rd must still succeed.
	var hits atomic.Int64
	ok := func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}
	bad := func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}
	srv1 := httptest.NewServer(http.HandlerFunc(ok))
	srv2 := httptest.NewServer(http.HandlerFunc(bad))
	srv3 := httptest.NewServer(http.HandlerFunc(ok))
	defer srv1.Close()
	defer srv2.Close()
	defer srv3.Close()

	f := New(Config{Logger: testLogger()})
	results := f.Dispatch(context.Background(), domain.OutboundPayload{
		Username: "u", Content: "c",
	}, []string{srv1.URL, srv2.URL, srv3.URL})

	if hits.Load() != 3 {
		t.Errorf("hits = %d, want 3 (all targets attempted)", hits.Load())
	}
	if !results[0].OK || !results[2].OK {
		t.Errorf("siblings affected by failure: %+v", results)
	}
	if results[1].OK || results[1].StatusCode != http.StatusTooManyRequests {
		t.Errorf("failure not classified: %+v", results[1])
	}
	if results[0].Target != srv1.URL || results[1].Target != srv2.URL || results[2].Target != srv3.URL {
		t.Error("results out of target order")
	}
}

func TestDispatch_UnreachableTarget(t *testing.T) {
	f := New(Config{Logger: testLogger()})
	results := f.Dispatch(context.Background(), domain.OutboundPayload{
		Username: "u", Content: "c",
	}, []string{"http://127.0.0.1:1/webhook"})
	if results[0].OK || results[0].Err == nil {
		t.Errorf("expected transport failure: %+v", results[0])
	}
	if results[0].StatusCode != 0 {
		t.Errorf("status = %d, want 0 for incomplete request", results[0].StatusCode)
	}
}

func TestDispatch_Status200And204AreSuccess(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusNoContent} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		f := New(Config{Logger: testLogger()})
		results := f.Dispatch(context.Background(), domain.OutboundPayload{Username: "u"}, []string{srv.URL})
		if !results[0].OK {
			t.Errorf("status %d classified as failure", status)
		}
		srv.Close()
	}
}
