package generate

import "github.com/jotdown/jotdown/internal/note"

// modeConversation drives the side conversation over a note. It is never
// selectable on a session, so it stays internal to this package.
const modeConversation note.Mode = "conversation"

// modeSpec carries the fixed generation parameters for one capture mode.
type modeSpec struct {
	model       string
	temperature float32
	system      string
}

var modeSpecs = map[note.Mode]modeSpec{
	note.ModeStructured: {
		model:       "googleai/gemini-2.5-flash",
		temperature: 0.3,
		system: `You organize raw notes into clean, structured notes.
The user message contains note text in document order, possibly interleaved
with images, plus attached files (PDFs, audio, documents).

Produce Markdown with clear headings, grouped related points, and bullet
lists. Preserve every fact, name, number, date and link from the input.
Transcribe or summarize attached media where relevant. Do not invent
content. Respond in the dominant language of the input.`,
	},
	note.ModeTranscribe: {
		model:       "googleai/gemini-2.5-flash",
		temperature: 0.2,
		system: `You transcribe the provided material verbatim.
Transcribe audio word for word, extract text from images and PDFs in
reading order, and keep the original language. Use Markdown only for
paragraph breaks and speaker labels. Do not summarize, correct or omit
anything.`,
	},
	note.ModeActions: {
		model:       "googleai/gemini-2.5-flash",
		temperature: 0.2,
		system: `You extract action items from notes and attached material.
Return a Markdown task list. Each item states the action, the owner if one
is named, and the due date if one is given. Group items under headings when
the notes cover distinct topics. List only actions that are actually in the
input; if there are none, say so in one line.`,
	},
	note.ModeWeekly: {
		model:       "googleai/gemini-2.5-flash",
		temperature: 0.4,
		system: `You write a weekly review from a batch of dated notes.
Each note appears under a heading with its date and title. Produce Markdown
with three sections: what happened, decisions made, and open items for next
week. Keep it concise and reference the source notes by their titles.`,
	},
	modeConversation: {
		model:       "googleai/gemini-2.5-flash",
		temperature: 0.7,
		system: `You answer questions about the note shown in the first user
message. Ground every answer in the note and its attachments; when the note
does not contain the answer, say so. Keep replies short and conversational.`,
	},
}

// specFor resolves the generation parameters for a mode. Unknown modes fall
// back to the structured defaults so a session written by a newer build
// still generates.
func specFor(mode note.Mode) modeSpec {
	if spec, ok := modeSpecs[mode]; ok {
		return spec
	}
	return modeSpecs[note.ModeStructured]
}
