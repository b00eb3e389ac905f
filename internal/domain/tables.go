package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	&SysOpr{},
	&SysOprLog{},
	// WhatsApp
	&WaDevice{},
	&WaChat{},
	&WaMessage{},
	// Panel extras
	&MsgTemplate{},
	&ChatLabel{},
	&ChatLabelLink{},
}
