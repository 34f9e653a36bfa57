package main

import (
	"path/filepath"
	"testing"
)

func TestLoadSitesDefaultsToBuiltInStores(t *testing.T) {
	sites, err := loadSites("")
	if err != nil {
		t.Fatalf("load sites: %v", err)
	}
	if len(sites) != 2 || sites[0].StoreName != "OnlineTrade" || sites[1].StoreName != "Regard" {
		t.Fatalf("unexpected built-in sites: %+v", sites)
	}
	for _, site := range sites {
		if err := site.Validate(); err != nil {
			t.Fatalf("built-in site %s invalid: %v", site.StoreName, err)
		}
	}
}

func TestLoadSitesMissingFile(t *testing.T) {
	if _, err := loadSites(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing sites file")
	}
}
