package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"gocloud.dev/blob"
)

func TestBlobStoreWrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore("daily/")
	defer store.Close()

	key := "daily/TA_processed_20240101_000000.csv"
	if err := store.Write(ctx, key, []byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := store.ReadAll(ctx, key)
	if err != nil || string(got) != "payload" {
		t.Fatalf("ReadAll = %q, %v", got, err)
	}
	if ok, err := store.Exists(ctx, key); err != nil || !ok {
		t.Errorf("Exists = %v, %v", ok, err)
	}
	if got := store.URI(key); got != "mem://artifacts/"+key {
		t.Errorf("URI = %s", got)
	}

	iter := store.bucket.List(&blob.ListOptions{Prefix: "daily/"})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(obj.Key, ".tmp.") {
			t.Errorf("temporary object left behind: %s", obj.Key)
		}
	}
}
