package database

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS vehicles (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL DEFAULT 'car',
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS vehicle_images (
    id TEXT PRIMARY KEY,
    vehicle_id TEXT NOT NULL REFERENCES vehicles (id) ON DELETE CASCADE,
    filename TEXT NOT NULL,
    original_path TEXT NOT NULL,
    thumbnail_path TEXT,
    position INTEGER NOT NULL CHECK (position BETWEEN 1 AND 10),
    is_primary INTEGER NOT NULL DEFAULT 0,
    mime_type TEXT NOT NULL DEFAULT '',
    file_size INTEGER NOT NULL DEFAULT 0,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    uploaded_at TEXT NOT NULL,
    UNIQUE (vehicle_id, position)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_vehicle_images_primary
    ON vehicle_images (vehicle_id) WHERE is_primary = 1;
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS vehicles (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL DEFAULT 'car',
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS vehicle_images (
    id TEXT PRIMARY KEY,
    vehicle_id TEXT NOT NULL REFERENCES vehicles (id) ON DELETE CASCADE,
    filename TEXT NOT NULL,
    original_path TEXT NOT NULL,
    thumbnail_path TEXT,
    position INTEGER NOT NULL CHECK (position BETWEEN 1 AND 10),
    is_primary INTEGER NOT NULL DEFAULT 0,
    mime_type TEXT NOT NULL DEFAULT '',
    file_size BIGINT NOT NULL DEFAULT 0,
    width INTEGER NOT NULL DEFAULT 0,
    height INTEGER NOT NULL DEFAULT 0,
    uploaded_at TEXT NOT NULL,
    UNIQUE (vehicle_id, position)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_vehicle_images_primary
    ON vehicle_images (vehicle_id) WHERE is_primary = 1;
`
