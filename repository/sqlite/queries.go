package sqlite

const (
	upsertSessionQuery = `
        INSERT INTO sessions (
            user_id, video_id, language, summary, chunks,
            created_at, updated_at, expires_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET
            video_id = excluded.video_id,
            language = excluded.language,
            summary = excluded.summary,
            chunks = excluded.chunks,
            created_at = excluded.created_at,
            updated_at = excluded.updated_at,
            expires_at = excluded.expires_at
    `

	getSessionQuery = `
        SELECT user_id, video_id, language, summary, chunks,
               created_at, updated_at, expires_at
        FROM sessions WHERE user_id = ?
    `

	deleteSessionQuery = `
        DELETE FROM sessions WHERE user_id = ?
    `

	listExpiredQuery = `
        SELECT user_id FROM sessions
        WHERE expires_at <= ?
        ORDER BY expires_at
    `

	getExpiresAtQuery = `
        SELECT expires_at FROM sessions WHERE user_id = ?
    `

	deleteIfExpiredQuery = `
        DELETE FROM sessions WHERE user_id = ? AND expires_at <= ?
    `
)
