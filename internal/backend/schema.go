package backend

// SchemaSQL contains the chat schema initialization SQL.
//
// The conversation table stores its participant pair in canonical order
// (participant_a < participant_b) so the unique index enforces at most one
// conversation per unordered pair. Denormalized last-message fields are
// maintained by a table event on message create, and the two RPCs the app
// uses are defined as fn:: functions.
const SchemaSQL = `
    -- ==========================================================================
    -- USER TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS user SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS email ON user TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON user TYPE datetime DEFAULT time::now() READONLY;

    DEFINE INDEX IF NOT EXISTS user_email ON user FIELDS email UNIQUE;

    -- ==========================================================================
    -- CONVERSATION TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS conversation SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS participant_a ON conversation TYPE record<user>;
    DEFINE FIELD IF NOT EXISTS participant_b ON conversation TYPE record<user>;
    DEFINE FIELD IF NOT EXISTS last_message_at ON conversation TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS last_message_text ON conversation TYPE option<string>;
    DEFINE FIELD IF NOT EXISTS last_message_sender ON conversation TYPE option<record<user>>;
    DEFINE FIELD IF NOT EXISTS created_at ON conversation TYPE datetime DEFAULT time::now() READONLY;
    DEFINE FIELD IF NOT EXISTS updated_at ON conversation TYPE datetime VALUE time::now();

    -- Canonical pair order makes this index cover the unordered pair
    DEFINE INDEX IF NOT EXISTS conversation_pair ON conversation FIELDS participant_a, participant_b UNIQUE;

    -- ==========================================================================
    -- MESSAGE TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS message SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS conversation ON message TYPE record<conversation>;
    DEFINE FIELD IF NOT EXISTS sender ON message TYPE record<user>;
    DEFINE FIELD IF NOT EXISTS content ON message TYPE string ASSERT string::len(string::trim($value)) > 0;
    DEFINE FIELD IF NOT EXISTS created_at ON message TYPE datetime DEFAULT time::now() READONLY;
    DEFINE FIELD IF NOT EXISTS updated_at ON message TYPE datetime VALUE time::now();

    DEFINE INDEX IF NOT EXISTS message_thread ON message FIELDS conversation, created_at;

    -- Keep the conversation's denormalized last-message fields current
    DEFINE EVENT IF NOT EXISTS message_created ON message WHEN $event = "CREATE" THEN {
        UPDATE $after.conversation SET
            last_message_at = $after.created_at,
            last_message_text = $after.content,
            last_message_sender = $after.sender;
    };

    -- ==========================================================================
    -- MESSAGE_READ TABLE (read receipts)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS message_read SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS message ON message_read TYPE record<message>;
    DEFINE FIELD IF NOT EXISTS reader ON message_read TYPE record<user>;
    DEFINE FIELD IF NOT EXISTS read_at ON message_read TYPE datetime DEFAULT time::now() READONLY;

    -- At most one receipt per (message, reader)
    DEFINE INDEX IF NOT EXISTS message_read_unique ON message_read FIELDS message, reader UNIQUE;

    -- ==========================================================================
    -- SERVER-SIDE FUNCTIONS
    -- ==========================================================================
    -- Get-or-create semantics for the conversation of an unordered user pair
    DEFINE FUNCTION IF NOT EXISTS fn::get_or_create_conversation($u1: record<user>, $u2: record<user>) {
        LET $a = IF $u1 < $u2 { $u1 } ELSE { $u2 };
        LET $b = IF $u1 < $u2 { $u2 } ELSE { $u1 };
        LET $existing = (SELECT VALUE id FROM conversation WHERE participant_a = $a AND participant_b = $b);
        IF array::len($existing) > 0 {
            RETURN $existing[0];
        };
        LET $created = (CREATE ONLY conversation SET participant_a = $a, participant_b = $b);
        RETURN $created.id;
    };

    -- Receipt every unread foreign message in one atomic call; returns the
    -- number of receipts created so a repeat call reports 0
    DEFINE FUNCTION IF NOT EXISTS fn::mark_messages_as_read($conversation: record<conversation>, $reader: record<user>) {
        LET $seen = (SELECT VALUE message FROM message_read WHERE reader = $reader);
        LET $unread = (SELECT VALUE id FROM message WHERE conversation = $conversation AND sender != $reader AND id NOTINSIDE $seen);
        FOR $m IN $unread {
            CREATE message_read SET message = $m, reader = $reader;
        };
        RETURN array::len($unread);
    };
`
