package deepgram

import (
	"strings"

	"github.com/koscakluka/ema-vision/core/texttospeech"
)

type deepgramVoice string

const defaultVoice deepgramVoice = "aura-2-arcas-en"

// voiceModels pairs each selectable voice with the closest Aura voice.
var voiceModels = map[texttospeech.VoiceID]deepgramVoice{
	texttospeech.VoiceChris: "aura-2-arcas-en",
	texttospeech.VoiceAlice: "aura-2-thalia-en",
	texttospeech.VoiceAria:  "aura-2-andromeda-en",
	texttospeech.VoiceBill:  "aura-2-orion-en",
	texttospeech.VoiceBrian: "aura-2-apollo-en",
}

// voiceModel also passes raw Aura model names through.
func voiceModel(voice texttospeech.VoiceID) deepgramVoice {
	if model, ok := voiceModels[voice]; ok {
		return model
	}
	if strings.HasPrefix(string(voice), "aura-") {
		return deepgramVoice(voice)
	}
	return defaultVoice
}
