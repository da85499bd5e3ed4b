package mcpserver

const recordFormatURI = "axanet://record-format"

// RecordFormat describes the on-disk client record that LLM consumers read
// back from consult_client and may find in the data directory.
const RecordFormat = `# Axanet Client Record Format

Every client is stored as one UTF-8 JSON file ` + "`" + `clients/<identifier>.json` + "`" + `.

## Identifier

Derived from the display name: Unicode NFC, trimmed, lower-cased, only
letters, digits, ` + "`" + `-` + "`" + ` and ` + "`" + `_` + "`" + ` kept, whitespace runs collapsed into one ` + "`" + `_` + "`" + `.
` + "`" + `"  Maria   GARCIA "` + "`" + ` and ` + "`" + `"maria garcia"` + "`" + ` both map to ` + "`" + `maria_garcia` + "`" + `.
Tools accept either the display name or the identifier.

## Structure

` + "```" + `json
{
  "identifier": "maria_garcia",
  "name": "Maria Garcia",
  "service": "Web Dev",
  "notes": "prefers email",
  "createdAt": "2025-01-15T10:00:00Z",
  "updatedAt": "2025-01-20T09:30:00Z",
  "history": [
    {"seq": 1, "kind": "created", "timestamp": "2025-01-15T10:00:00Z",
     "payload": {"name": "Maria Garcia", "service": "Web Dev", "notes": ""}},
    {"seq": 2, "kind": "updated", "timestamp": "2025-01-20T09:30:00Z",
     "payload": {"notes": {"from": "", "to": "prefers email"}}},
    {"seq": 3, "kind": "consulted", "timestamp": "2025-01-21T08:00:00Z"}
  ]
}
` + "```" + `

## Rules

1. **History is append-only.** Entries are never edited or removed; ` + "`" + `seq` + "`" + ` is the
   1-based append position and timestamps strictly increase.
2. **created** carries a snapshot of name, service and notes.
3. **updated** carries only the changed fields as ` + "`" + `{"from": ..., "to": ...}` + "`" + `.
4. **consulted** has no payload and does not change ` + "`" + `updatedAt` + "`" + `.
5. **Deleting** removes the file; there is no tombstone.
6. **index.json** next to ` + "`" + `clients/` + "`" + ` is a derived cache and is rebuilt from the
   records whenever it is missing or fails its checksum.
`
