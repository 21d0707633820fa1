package mcpserver

// StoryFormatContract describes the Markdown story format that the
// synchronizer reads and writes.
const StoryFormatContract = `# Story Format Contract

Every user story is one Markdown file in the story directory
(default ` + "`" + `_bmad-output/stories` + "`" + `). The file name without ` + "`" + `.md` + "`" + ` is the
story id and is what links the file to its board item.

## Structure

` + "```" + `markdown
---
title: "Human-readable title"      # REQUIRED
status: "todo"                     # REQUIRED – todo, in_progress or done
epic: "payments"                   # OPTIONAL – any other key is preserved on pull
---

# Human-readable title

Body text in standard Markdown.
` + "```" + `

## Rules

1. **Frontmatter is mandatory.** The first line of the file is ` + "`" + `---` + "`" + ` and a
   second ` + "`" + `---` + "`" + ` line closes the block.
2. **` + "`" + `title` + "`" + ` and ` + "`" + `status` + "`" + ` are required.** A story file missing either one
   stops a push before anything is sent to the board.
3. **Values** may be wrapped in one pair of matching double or single quotes; the
   quotes are not part of the value.
4. **Status** values are ` + "`" + `todo` + "`" + `, ` + "`" + `in_progress` + "`" + ` and ` + "`" + `done` + "`" + `. Board
   values such as ` + "`" + `In Progress` + "`" + ` are normalized on pull.
5. **File names** are the story id plus ` + "`" + `.md` + "`" + `; no sub-directories.
6. **Board items** are titled ` + "`" + `[<id>] <title>` + "`" + `. Items without the bracketed id
   are ignored on pull.
7. **Deleting a story file** archives its board item on the next push.

## Example

` + "```" + `markdown
---
title: "Checkout with saved card"
status: "in_progress"
epic: "payments"
---

# Checkout with saved card

As a returning customer I want to pay with a saved card.
` + "```" + `
`
