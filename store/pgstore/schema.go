package pgstore

// Channel is the LISTEN/NOTIFY channel writes announce themselves on.
const Channel = "foodcart_events"

const schema = `
CREATE TABLE IF NOT EXISTS menu_items (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    size        TEXT NOT NULL DEFAULT '',
    price       DOUBLE PRECISION NOT NULL CHECK (price >= 0),
    images      TEXT[] NOT NULL DEFAULT '{}',
    video       TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS menu_items_created_at_idx ON menu_items (created_at DESC);

CREATE TABLE IF NOT EXISTS orders (
    id                      TEXT PRIMARY KEY,
    customer                JSONB NOT NULL,
    items                   JSONB NOT NULL,
    total                   DOUBLE PRECISION NOT NULL,
    payment_method          TEXT NOT NULL,
    created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
    status                  TEXT NOT NULL,
    status_updated_at       TIMESTAMPTZ,
    estimated_delivery_time TEXT
);
CREATE INDEX IF NOT EXISTS orders_created_at_idx ON orders (created_at DESC);
`
