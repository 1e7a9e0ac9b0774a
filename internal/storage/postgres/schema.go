package postgres

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	number       TEXT PRIMARY KEY,
	variant      TEXT NOT NULL,
	balance      NUMERIC NOT NULL DEFAULT 0,
	credit_limit NUMERIC NOT NULL DEFAULT 0,
	position     BIGSERIAL
);

CREATE TABLE IF NOT EXISTS transactions (
	sequence       BIGINT PRIMARY KEY,
	account_number TEXT NOT NULL,
	amount         NUMERIC NOT NULL,
	date           DATE NOT NULL,
	kind           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS transactions_account_idx ON transactions (account_number, sequence);

CREATE TABLE IF NOT EXISTS ledger_sequence (
	id   BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
	last BIGINT NOT NULL
);

INSERT INTO ledger_sequence (id, last) VALUES (TRUE, 0) ON CONFLICT (id) DO NOTHING;

CREATE TABLE IF NOT EXISTS customers (
	id            BIGINT PRIMARY KEY,
	name          TEXT NOT NULL,
	surname       TEXT NOT NULL,
	date_of_birth DATE NOT NULL,
	address       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS customer_accounts (
	customer_id    BIGINT NOT NULL REFERENCES customers (id),
	account_number TEXT NOT NULL,
	position       BIGSERIAL,
	PRIMARY KEY (customer_id, account_number)
);
`
