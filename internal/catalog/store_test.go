package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/vyrodovalexey/catalog-api/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const sampleDocument = `[
  {
    "id": 1,
    "title": "Пикник на обочине",
    "creator": "Стругацкие",
    "genres": ["Sci-Fi"],
    "rating": 8.0,
    "reviews": [
      {"author": "A", "text": "ok", "rating": 8.0, "date": "01.01.2024"}
    ]
  }
]
`

func writeDocument(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "books.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestFileStore_Load(t *testing.T) {
	// Arrange
	store := NewFileStore(writeDocument(t, sampleDocument))

	// Act
	catalog, err := store.Load(context.Background())

	// Assert
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(catalog) != 1 {
		t.Fatalf("Load() items = %d, want 1", len(catalog))
	}
	if catalog[0].Title != "Пикник на обочине" {
		t.Errorf("Title = %q", catalog[0].Title)
	}
	if len(catalog[0].Reviews) != 1 || catalog[0].Reviews[0].Rating != 8 {
		t.Errorf("Reviews = %+v", catalog[0].Reviews)
	}
}

func TestFileStore_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr error
	}{
		{
			name: "missing document",
			path: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "absent.json")
			},
			wantErr: ErrDocumentNotFound,
		},
		{
			name: "malformed json",
			path: func(t *testing.T) string {
				return writeDocument(t, `[{"id": 1,`)
			},
			wantErr: ErrParse,
		},
		{
			name: "not an array",
			path: func(t *testing.T) string {
				return writeDocument(t, `{"id": 1}`)
			},
			wantErr: ErrParse,
		},
		{
			name: "null document",
			path: func(t *testing.T) string {
				return writeDocument(t, `null`)
			},
			wantErr: ErrParse,
		},
		{
			name: "directory instead of file",
			path: func(t *testing.T) string {
				return t.TempDir()
			},
			wantErr: ErrIO,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			store := NewFileStore(tt.path(t))

			// Act
			_, err := store.Load(context.Background())

			// Assert
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFileStore_Load_ContextCancellation(t *testing.T) {
	// Arrange
	store := NewFileStore(writeDocument(t, sampleDocument))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Act
	_, err := store.Load(ctx)

	// Assert
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func TestFileStore_SaveRoundTrip(t *testing.T) {
	// Arrange
	path := writeDocument(t, sampleDocument)
	store := NewFileStore(path)
	catalog, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	catalog[0].Reviews = append(catalog[0].Reviews, model.Review{
		Author: "B", Text: "<b>fine</b> & good", Rating: 4, Date: "02.01.2024",
	})
	catalog[0].RecomputeRating()

	// Act
	if err := store.Save(context.Background(), catalog); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	reloaded, err := store.Load(context.Background())

	// Assert
	if err != nil {
		t.Fatalf("Load() after Save() error = %v", err)
	}
	if reloaded[0].Rating != 6 || len(reloaded[0].Reviews) != 2 {
		t.Errorf("reloaded item = %+v", reloaded[0])
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	content := string(raw)
	if !strings.Contains(content, "\n  {\n    \"id\": 1,") {
		t.Errorf("document is not indented with two spaces:\n%s", content)
	}
	if !strings.Contains(content, "Пикник на обочине") {
		t.Error("non-ASCII text was escaped")
	}
	if !strings.Contains(content, "<b>fine</b> & good") {
		t.Error("HTML characters were escaped")
	}
	if !strings.Contains(content, `"rating": 6.0`) {
		t.Errorf("rating not written with a fractional digit:\n%s", content)
	}
}

func TestFileStore_SaveLeavesNoTempFiles(t *testing.T) {
	// Arrange
	path := writeDocument(t, sampleDocument)
	store := NewFileStore(path)

	// Act
	for i := 0; i < 3; i++ {
		if err := store.Save(context.Background(), model.Catalog{{ID: i, Genres: []string{}}}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	// Assert
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory entries = %v, want only books.json", names)
	}
}

func TestFileStore_SaveFailureKeepsDocument(t *testing.T) {
	// Arrange
	store := NewFileStore(filepath.Join(t.TempDir(), "missing-dir", "books.json"))

	// Act
	err := store.Save(context.Background(), model.Catalog{})

	// Assert
	if !errors.Is(err, ErrIO) {
		t.Errorf("Save() error = %v, want ErrIO", err)
	}
}

func TestFileStore_Save_ContextCancellation(t *testing.T) {
	// Arrange
	path := writeDocument(t, sampleDocument)
	store := NewFileStore(path)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Act
	err := store.Save(ctx, model.Catalog{})

	// Assert
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Save() error = %v, want context.Canceled", err)
	}
	raw, _ := os.ReadFile(path)
	if string(raw) != sampleDocument {
		t.Error("document changed after a cancelled Save()")
	}
}

func TestFileStore_ImplementsInterface(_ *testing.T) {
	var _ Store = (*FileStore)(nil)
}

func TestLookupDomain(t *testing.T) {
	tests := []struct {
		name        string
		wantMessage string
		wantErr     bool
	}{
		{"books", "book not found", false},
		{"games", "Game not found", false},
		{"movies", "movie not found", false},
		{"music", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := LookupDomain(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownDomain) {
					t.Errorf("LookupDomain() error = %v, want ErrUnknownDomain", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("LookupDomain() error = %v", err)
			}
			if d.NotFoundMessage != tt.wantMessage {
				t.Errorf("NotFoundMessage = %q, want %q", d.NotFoundMessage, tt.wantMessage)
			}
			if got := d.DocumentPath("data"); got != filepath.Join("data", tt.name+".json") {
				t.Errorf("DocumentPath() = %q", got)
			}
		})
	}
}
