package db

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;

-- URLs table: normalized URL components, one row per audited address
CREATE TABLE IF NOT EXISTS urls (
    url_id INTEGER PRIMARY KEY AUTOINCREMENT,
    original_url TEXT NOT NULL UNIQUE,
    canonical_url TEXT,
    scheme TEXT NOT NULL,
    domain TEXT NOT NULL,
    path TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_urls_domain ON urls(domain);

-- Scans: one audit of one page
CREATE TABLE IF NOT EXISTS scans (
    scan_id TEXT PRIMARY KEY,
    url_id INTEGER NOT NULL,
    driver TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    error TEXT,

    -- Page metadata harvested after load
    final_url TEXT,
    title TEXT,
    meta_desc TEXT,
    html_lang TEXT,
    detected_lang TEXT,
    excerpt TEXT,
    text_length INTEGER DEFAULT 0,
    consent_platform TEXT,
    country TEXT,
    opt_in_regime BOOLEAN DEFAULT 0,

    FOREIGN KEY (url_id) REFERENCES urls(url_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_scans_url ON scans(url_id);
CREATE INDEX IF NOT EXISTS idx_scans_started ON scans(started_at DESC);

-- Injection results: captured unit values, in injection order
CREATE TABLE IF NOT EXISTS injection_results (
    result_id INTEGER PRIMARY KEY AUTOINCREMENT,
    scan_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    script_name TEXT NOT NULL,
    result TEXT NOT NULL,
    FOREIGN KEY (scan_id) REFERENCES scans(scan_id) ON DELETE CASCADE,
    UNIQUE(scan_id, position)
);

CREATE INDEX IF NOT EXISTS idx_injection_results_name ON injection_results(script_name);

-- Links: the page's hyperlink collection, in document order, duplicates kept
CREATE TABLE IF NOT EXISTS links (
    link_id INTEGER PRIMARY KEY AUTOINCREMENT,
    scan_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    text TEXT,
    href TEXT NOT NULL,
    protocol TEXT,
    FOREIGN KEY (scan_id) REFERENCES scans(scan_id) ON DELETE CASCADE,
    UNIQUE(scan_id, position)
);

CREATE INDEX IF NOT EXISTS idx_links_protocol ON links(protocol);
`
