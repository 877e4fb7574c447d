package postgres

// Schema is the SQL DDL for the engine-owned tables. Execute it via
// [Store.Migrate] or apply it manually during deployment.
//
// The words table referenced by the word store queries is owned by the
// external vocabulary system and is deliberately absent here. The
// chk_pair_order constraint enforces the canonical pair ordering at the
// storage layer; the application treats a violation as a programming error
// long before it reaches the database.
const Schema = `
CREATE TABLE IF NOT EXISTS word_profiles (
    word_id        BIGINT PRIMARY KEY,
    term           TEXT NOT NULL,
    phonemes       JSONB NOT NULL DEFAULT '[]',
    stresses       JSONB NOT NULL DEFAULT '[]',
    syllable_count INT NOT NULL DEFAULT 1,
    source         TEXT NOT NULL,
    source_rank    INT NOT NULL DEFAULT 0,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_word_profiles_source ON word_profiles(source);
CREATE INDEX IF NOT EXISTS idx_word_profiles_syllables ON word_profiles(syllable_count);

CREATE TABLE IF NOT EXISTS similarity_pairs (
    word1_id            BIGINT NOT NULL,
    word2_id            BIGINT NOT NULL,
    phonetic_distance   DOUBLE PRECISION NOT NULL,
    stress_similarity   DOUBLE PRECISION NOT NULL,
    rhyme_score         DOUBLE PRECISION NOT NULL,
    syllable_similarity DOUBLE PRECISION NOT NULL,
    overall_similarity  DOUBLE PRECISION NOT NULL,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (word1_id, word2_id),
    CONSTRAINT chk_pair_order CHECK (word1_id < word2_id)
);
CREATE INDEX IF NOT EXISTS idx_pairs_word1_overall ON similarity_pairs(word1_id, overall_similarity DESC);
CREATE INDEX IF NOT EXISTS idx_pairs_word2_overall ON similarity_pairs(word2_id, overall_similarity DESC);

CREATE TABLE IF NOT EXISTS run_checkpoints (
    run_id     TEXT PRIMARY KEY,
    vocab_size BIGINT NOT NULL,
    threshold  DOUBLE PRECISION NOT NULL,
    row_start  BIGINT NOT NULL DEFAULT 0,
    col_start  BIGINT NOT NULL DEFAULT 0,
    block_rows BIGINT NOT NULL,
    block_cols BIGINT NOT NULL,
    state      TEXT NOT NULL,
    started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`
