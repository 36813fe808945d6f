package notebook

import (
	"fmt"
	"strings"

	"github.com/aunorthrop/nora/pkg/core/types"
)

// timestampLayout renders note timestamps for the history block. The layout is
// fixed so the assembled context is byte-identical for a fixed store.
const timestampLayout = "2006-01-02 15:04:05"

// DefaultInstructions is the stock persona. Persona variants swap this text and
// the sampling parameters; the assembly logic never forks.
const DefaultInstructions = `You are Nora, a helpful voice-activated notebook assistant with perfect memory. Your personality is warm, friendly, and professional.

CORE FUNCTIONS:
- Remember EVERYTHING the user tells you with perfect recall
- Make connections between different conversations and topics
- Help users recall information from previous conversations
- Notice patterns and provide insights about their notes and thoughts
- Be conversational and natural in your responses

RESPONSE GUIDELINES:
- Keep responses concise and natural for voice interaction (1-3 sentences usually)
- Reference previous conversations when relevant: "You mentioned that project last week..."
- Be helpful and proactive in making connections
- If asked about something not in your notes, say "I don't have any notes about that yet"
- Speak naturally as if having a real conversation

MEMORY BEHAVIOR:
- Always reference previous conversations when they're relevant to the current topic
- Help users remember details they might have forgotten
- Connect new information to things they've told you before
- Notice patterns in their interests, goals, or concerns`

// AssemblerOptions bound the context window. "Window" here is the slice of past
// notes included in one request, not a model token limit.
type AssemblerOptions struct {
	// Instructions is the persona text of the system message.
	Instructions string
	// HistoryLimit bounds how many recent notes the history block renders.
	HistoryLimit int
	// TopicThreshold is the note count above which a topic digest is appended.
	TopicThreshold int
	// TurnLimit bounds how many session-local turns are carried as short-term
	// context. Durable notes are long-term memory; turns never persist.
	TurnLimit int
	// Topics tunes the digest heuristic.
	Topics TopicOptions
}

// DefaultAssemblerOptions returns the stock context bounds.
func DefaultAssemblerOptions() AssemblerOptions {
	return AssemblerOptions{
		Instructions:   DefaultInstructions,
		HistoryLimit:   8,
		TopicThreshold: 5,
		TurnLimit:      6,
		Topics:         DefaultTopicOptions(),
	}
}

// Assembler builds the ordered message list for one exchange. Its output is a
// pure function of (store contents, session turns, utterance, options):
// identical inputs produce byte-identical message lists.
type Assembler struct {
	opts AssemblerOptions
}

// NewAssembler creates an assembler. Zero-value option fields fall back to the
// defaults.
func NewAssembler(opts AssemblerOptions) *Assembler {
	def := DefaultAssemblerOptions()
	if opts.Instructions == "" {
		opts.Instructions = def.Instructions
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = def.HistoryLimit
	}
	if opts.TopicThreshold <= 0 {
		opts.TopicThreshold = def.TopicThreshold
	}
	if opts.TurnLimit <= 0 {
		opts.TurnLimit = def.TurnLimit
	}
	if opts.Topics.StopWords == nil {
		opts.Topics = def.Topics
	}
	return &Assembler{opts: opts}
}

// Build assembles the message list: system instructions with the rendered
// history block, a bounded tail of session turns, then the current utterance.
func (a *Assembler) Build(store *Store, turns []types.Message, utterance string) []types.Message {
	system := a.opts.Instructions + a.renderHistory(store)

	messages := make([]types.Message, 0, len(turns)+2)
	messages = append(messages, types.SystemMessage(system))

	if n := len(turns); n > a.opts.TurnLimit {
		turns = turns[n-a.opts.TurnLimit:]
	}
	messages = append(messages, turns...)

	messages = append(messages, types.UserMessage(utterance))
	return messages
}

func (a *Assembler) renderHistory(store *Store) string {
	if store == nil || store.Len() == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\nPrevious conversation history (most recent first):\n")
	for _, note := range store.MostRecentFirst(a.opts.HistoryLimit) {
		ts := note.Timestamp.UTC().Format(timestampLayout)
		fmt.Fprintf(&b, "[%s] User: %q\nNora: %q\n\n", ts, note.Input, note.Response)
	}

	if store.Len() > a.opts.TopicThreshold {
		texts := make([]string, 0, store.Len())
		for _, note := range store.All() {
			texts = append(texts, note.Input+" "+note.Response)
		}
		topics := KeyTopics(texts, a.opts.Topics)
		if len(topics) > 0 {
			fmt.Fprintf(&b, "\nKey topics discussed: %s\n", strings.Join(topics, ", "))
		}
	}
	return b.String()
}
