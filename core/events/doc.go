// Package events defines what the orchestrator reports to presentation
// surfaces.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - conversation.*
//   - user_input.*
//   - status.*
//   - assistant_playback.*
//   - turn_state.*
//
// conversation events
//
//   - ChatMessageAppended (conversation.message_appended): a message was
//     appended to the chat history.
//
// user_input events
//
//   - TranscriptUpdated (user_input.transcript_updated): the live transcript
//     line changed; Final marks a complete utterance.
//   - ListeningChanged (user_input.listening_changed): the recognizer opened
//     or lost its session.
//
// status events
//
//   - StatusUpdated (status.updated): processing stage text for the status
//     line.
//
// assistant_playback events
//
//   - PlaybackStarted (assistant_playback.started): the first chunk of a
//     reply was submitted to the device.
//   - PlaybackEnded (assistant_playback.ended): the device finished the
//     reply.
//
// turn_state events
//
//   - TurnCompleted (turn_state.completed): the reply was fully spoken.
//   - TurnFailed (turn_state.failed): the turn was aborted by an error.
//   - TurnCancelled (turn_state.cancelled): new speech superseded the turn.
package events
