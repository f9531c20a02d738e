package sqlstore

import "database/sql"

// schema sets up the database. It is written in the subset of SQL shared by
// SQLite and PostgreSQL and runs on every startup.
// Accounts must be created before tables that reference them.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    user_id TEXT PRIMARY KEY,
    balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    loyalty_points BIGINT NOT NULL DEFAULT 0 CHECK (loyalty_points >= 0),
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    amount BIGINT NOT NULL CHECK (amount > 0),
    delta BIGINT NOT NULL,
    counterparty_id TEXT NOT NULL DEFAULT '',
    order_id TEXT NOT NULL DEFAULT '',
    note TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    FOREIGN KEY (user_id) REFERENCES accounts(user_id)
);

CREATE TABLE IF NOT EXISTS obligations (
    id TEXT PRIMARY KEY,
    borrower_id TEXT NOT NULL,
    helper_id TEXT NOT NULL,
    order_id TEXT NOT NULL,
    amount BIGINT NOT NULL CHECK (amount >= 0),
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    settled_at BIGINT NOT NULL DEFAULT 0,
    UNIQUE (borrower_id, helper_id, order_id),
    FOREIGN KEY (borrower_id) REFERENCES accounts(user_id),
    FOREIGN KEY (helper_id) REFERENCES accounts(user_id)
);

CREATE TABLE IF NOT EXISTS repayments (
    id TEXT PRIMARY KEY,
    borrower_id TEXT NOT NULL,
    helper_id TEXT NOT NULL,
    product_id TEXT NOT NULL DEFAULT '',
    amount BIGINT NOT NULL CHECK (amount > 0),
    due_date BIGINT NOT NULL,
    status TEXT NOT NULL,
    method TEXT NOT NULL DEFAULT '',
    paid_at BIGINT NOT NULL DEFAULT 0,
    failure_reason TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    buyer_id TEXT NOT NULL,
    status TEXT NOT NULL,
    payment_method TEXT NOT NULL,
    payment_status TEXT NOT NULL,
    payment_transaction_id TEXT NOT NULL DEFAULT '',
    payment_amount BIGINT NOT NULL DEFAULT 0,
    subtotal BIGINT NOT NULL,
    shipping BIGINT NOT NULL,
    tax BIGINT NOT NULL,
    discount BIGINT NOT NULL,
    points_discount BIGINT NOT NULL,
    total BIGINT NOT NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    delivered_at BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS order_items (
    order_id TEXT NOT NULL,
    line_no INTEGER NOT NULL,
    product_id TEXT NOT NULL,
    vendor_id TEXT NOT NULL,
    name TEXT NOT NULL DEFAULT '',
    price BIGINT NOT NULL,
    quantity BIGINT NOT NULL,
    item_condition TEXT NOT NULL,
    PRIMARY KEY (order_id, line_no),
    FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS payment_authorizations (
    id TEXT PRIMARY KEY,
    order_id TEXT NOT NULL,
    method TEXT NOT NULL,
    amount BIGINT NOT NULL,
    external_ref TEXT NOT NULL DEFAULT '',
    created_at BIGINT NOT NULL,
    FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS payouts (
    id TEXT PRIMARY KEY,
    vendor_id TEXT NOT NULL,
    order_id TEXT NOT NULL,
    gross BIGINT NOT NULL,
    commission_percent BIGINT NOT NULL,
    commission BIGINT NOT NULL,
    net BIGINT NOT NULL,
    status TEXT NOT NULL,
    created_at BIGINT NOT NULL,
    UNIQUE (vendor_id, order_id)
);

CREATE TABLE IF NOT EXISTS loyalty_awards (
    order_id TEXT NOT NULL,
    reason TEXT NOT NULL,
    user_id TEXT NOT NULL,
    points BIGINT NOT NULL,
    created_at BIGINT NOT NULL,
    PRIMARY KEY (order_id, reason)
);

CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_accounts_balance ON accounts(balance);
CREATE INDEX IF NOT EXISTS idx_obligations_borrower_id ON obligations(borrower_id);
CREATE INDEX IF NOT EXISTS idx_obligations_helper_id ON obligations(helper_id);
CREATE INDEX IF NOT EXISTS idx_repayments_status_due ON repayments(status, due_date);
CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);
CREATE INDEX IF NOT EXISTS idx_payouts_order_id ON payouts(order_id);
CREATE INDEX IF NOT EXISTS idx_payouts_vendor_id ON payouts(vendor_id);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
