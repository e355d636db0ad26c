// Package protocol implements the framed link between the host and the motor
// controller board: VLQ-encoded commands inside CRC16-checked frames.
package protocol

// Frame layout: [len][seq][payload...][crc hi][crc lo][sync].
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F

	// MessageMax bounds a scratch buffer holding one encoded frame.
	MessageMax = 512
)

// Command IDs understood by the motor controller.
const (
	CmdSetVoltage   uint16 = 1
	CmdQueryEncoder uint16 = 2
	CmdResetEncoder uint16 = 3
	CmdStop         uint16 = 4
	CmdI2CWrite     uint16 = 5
	CmdI2CRead      uint16 = 6
)

// Response IDs sent by the motor controller.
const (
	RspEncoderState    uint16 = 0x40
	RspI2CReadResponse uint16 = 0x41
)

var commandNames = map[uint16]string{
	CmdSetVoltage:      "set_voltage",
	CmdQueryEncoder:    "query_encoder",
	CmdResetEncoder:    "reset_encoder",
	CmdStop:            "stop",
	CmdI2CWrite:        "i2c_write",
	CmdI2CRead:         "i2c_read",
	RspEncoderState:    "encoder_state",
	RspI2CReadResponse: "i2c_read_response",
}

// CommandName returns the wire name of a command or response ID.
func CommandName(id uint16) string {
	if name, ok := commandNames[id]; ok {
		return name
	}
	return "unknown"
}

// nextSequence advances a sequence number within 0x10-0x1F.
func nextSequence(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
