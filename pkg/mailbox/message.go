package mailbox

import "fmt"

// ID identifies a mailbox message.
type ID uint32

// Message identifiers understood by the service processor firmware.
// Identifier 19 is reserved and never issued.
const (
	MsgTestMessage               ID = 0x01
	MsgGetSMUVersion             ID = 0x02
	MsgGetInterfaceVersion       ID = 0x03
	MsgGetSocketPower            ID = 0x04
	MsgSetSocketPowerLimit       ID = 0x05
	MsgGetSocketPowerLimit       ID = 0x06
	MsgGetSocketPowerLimitMax    ID = 0x07
	MsgSetBoostLimit             ID = 0x08
	MsgSetBoostLimitSocket       ID = 0x09
	MsgGetBoostLimit             ID = 0x0A
	MsgGetProcHot                ID = 0x0B
	MsgSetXGMILinkWidth          ID = 0x0C
	MsgSetDataFabricPState       ID = 0x0D
	MsgAutoDataFabricPState      ID = 0x0E
	MsgGetFabricClocks           ID = 0x0F
	MsgGetCoreClockThrottleLimit ID = 0x10
	MsgGetC0Residency            ID = 0x11
	MsgSetNBIODPMLevel           ID = 0x12
	MsgGetDDRBandwidth           ID = 0x14
)

// String returns the symbolic message name.
func (id ID) String() string {
	switch id {
	case MsgTestMessage:
		return "TestMessage"
	case MsgGetSMUVersion:
		return "GetSMUVersion"
	case MsgGetInterfaceVersion:
		return "GetInterfaceVersion"
	case MsgGetSocketPower:
		return "GetSocketPower"
	case MsgSetSocketPowerLimit:
		return "SetSocketPowerLimit"
	case MsgGetSocketPowerLimit:
		return "GetSocketPowerLimit"
	case MsgGetSocketPowerLimitMax:
		return "GetSocketPowerLimitMax"
	case MsgSetBoostLimit:
		return "SetBoostLimit"
	case MsgSetBoostLimitSocket:
		return "SetBoostLimitSocket"
	case MsgGetBoostLimit:
		return "GetBoostLimit"
	case MsgGetProcHot:
		return "GetProcHot"
	case MsgSetXGMILinkWidth:
		return "SetXGMILinkWidth"
	case MsgSetDataFabricPState:
		return "SetDataFabricPState"
	case MsgAutoDataFabricPState:
		return "AutoDataFabricPState"
	case MsgGetFabricClocks:
		return "GetFabricClocks"
	case MsgGetCoreClockThrottleLimit:
		return "GetCoreClockThrottleLimit"
	case MsgGetC0Residency:
		return "GetC0Residency"
	case MsgSetNBIODPMLevel:
		return "SetNBIODPMLevel"
	case MsgGetDDRBandwidth:
		return "GetDDRBandwidth"
	default:
		return fmt.Sprintf("Message(%#x)", uint32(id))
	}
}

// MaxWords is the number of data-register slots shared between
// arguments and responses.
const MaxWords = 8

// Message is one mailbox request. Args are written to the data
// registers in ascending slot order before the doorbell; on an OK
// status, Response is filled in place with as many words as the caller
// sized it for.
type Message struct {
	ID       ID
	Args     []uint32
	Response []uint32
}
