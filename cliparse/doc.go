// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse builds the server Config from flags, environment and an
optional YAML policy file.

# Startup

	if err := cliparse.LoadEnvFile(".env"); err != nil {
		log.Fatal(err)
	}
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	conn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)

LoadEnvFile reads KEY=VALUE pairs with godotenv. A missing file is fine and
variables already in the environment win.

# Flags

Flags are parsed with pflag:

	-p, --port           Server port (default 3318)
	-d, --database-url   Database URL or SQLite file path
	-t, --database-type  sqlite or postgres
	    --redis-url      Redis URL for the results cache
	    --policy         YAML policy file
	    --jwt-secret     Session token signing secret
	    --ip-salt        Salt for hashed voter IPs

Each flag falls back to an environment variable when unset:

	PORT, DATABASE_URL, DATABASE_TYPE, REDIS_URL, POLICY_FILE,
	JWT_SECRET, IP_HASH_SALT

DATABASE_URL, JWT_SECRET and IP_HASH_SALT are required. When no database
type is given it is inferred from the URL: postgres:// and postgresql://
select Postgres, anything else SQLite. Without a Redis URL the results cache
is an in-process LRU.

# Policy

LoadPolicy decodes the YAML file over policy.Default() and validates it, so a
file only needs the keys it changes:

	grace_window: 48h
	proxy_cap_per_receiver: 3
	quorum_percent: 50
*/
package cliparse
