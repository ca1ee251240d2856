package phpindex

import (
	"sync"
	"testing"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_php "github.com/tree-sitter/tree-sitter-php/bindings/go"
)

func newTestPool() *parserPool {
	return newParserPool(sitter.NewLanguage(tree_sitter_php.LanguagePHP()))
}

func TestParserPool_GetPut(t *testing.T) {
	pool := newTestPool()
	sp, err := pool.get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if pool.inUse() != 1 {
		t.Fatalf("expected 1 leased parser, got %d", pool.inUse())
	}
	pool.put(sp)
	if pool.inUse() != 0 {
		t.Fatalf("expected no leased parsers, got %d", pool.inUse())
	}
	pool.put(nil)
}

func TestParserPool_ParsesPHP(t *testing.T) {
	pool := newTestPool()
	sp, err := pool.get()
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer pool.put(sp)

	tree := sp.Parse([]byte("<?php\nclass A {}\n"), nil)
	if tree == nil {
		t.Fatal("expected a parse tree")
	}
	defer tree.Close()
	if tree.RootNode().HasError() {
		t.Fatal("unexpected syntax error")
	}
}

func TestParserPool_Concurrent(t *testing.T) {
	pool := newTestPool()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sp, err := pool.get()
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			tree := sp.Parse([]byte("<?php function f() {}\n"), nil)
			if tree != nil {
				tree.Close()
			}
			pool.put(sp)
		}()
	}
	wg.Wait()
	if pool.inUse() != 0 {
		t.Fatalf("expected all parsers returned, got %d leased", pool.inUse())
	}
}
