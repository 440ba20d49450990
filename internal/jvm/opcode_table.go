package jvm

// Opcodes.
const (
	OpNop             byte = 0x00
	OpAconstNull      byte = 0x01
	OpIconstM1        byte = 0x02
	OpIconst0         byte = 0x03
	OpIconst1         byte = 0x04
	OpIconst2         byte = 0x05
	OpIconst3         byte = 0x06
	OpIconst4         byte = 0x07
	OpIconst5         byte = 0x08
	OpLconst0         byte = 0x09
	OpLconst1         byte = 0x0a
	OpFconst0         byte = 0x0b
	OpFconst1         byte = 0x0c
	OpFconst2         byte = 0x0d
	OpDconst0         byte = 0x0e
	OpDconst1         byte = 0x0f
	OpBipush          byte = 0x10
	OpSipush          byte = 0x11
	OpLdc             byte = 0x12
	OpLdcW            byte = 0x13
	OpLdc2W           byte = 0x14
	OpIload           byte = 0x15
	OpLload           byte = 0x16
	OpFload           byte = 0x17
	OpDload           byte = 0x18
	OpAload           byte = 0x19
	OpIload0          byte = 0x1a
	OpIload1          byte = 0x1b
	OpIload2          byte = 0x1c
	OpIload3          byte = 0x1d
	OpLload0          byte = 0x1e
	OpLload1          byte = 0x1f
	OpLload2          byte = 0x20
	OpLload3          byte = 0x21
	OpFload0          byte = 0x22
	OpFload1          byte = 0x23
	OpFload2          byte = 0x24
	OpFload3          byte = 0x25
	OpDload0          byte = 0x26
	OpDload1          byte = 0x27
	OpDload2          byte = 0x28
	OpDload3          byte = 0x29
	OpAload0          byte = 0x2a
	OpAload1          byte = 0x2b
	OpAload2          byte = 0x2c
	OpAload3          byte = 0x2d
	OpIaload          byte = 0x2e
	OpLaload          byte = 0x2f
	OpFaload          byte = 0x30
	OpDaload          byte = 0x31
	OpAaload          byte = 0x32
	OpBaload          byte = 0x33
	OpCaload          byte = 0x34
	OpSaload          byte = 0x35
	OpIstore          byte = 0x36
	OpLstore          byte = 0x37
	OpFstore          byte = 0x38
	OpDstore          byte = 0x39
	OpAstore          byte = 0x3a
	OpIstore0         byte = 0x3b
	OpIstore1         byte = 0x3c
	OpIstore2         byte = 0x3d
	OpIstore3         byte = 0x3e
	OpLstore0         byte = 0x3f
	OpLstore1         byte = 0x40
	OpLstore2         byte = 0x41
	OpLstore3         byte = 0x42
	OpFstore0         byte = 0x43
	OpFstore1         byte = 0x44
	OpFstore2         byte = 0x45
	OpFstore3         byte = 0x46
	OpDstore0         byte = 0x47
	OpDstore1         byte = 0x48
	OpDstore2         byte = 0x49
	OpDstore3         byte = 0x4a
	OpAstore0         byte = 0x4b
	OpAstore1         byte = 0x4c
	OpAstore2         byte = 0x4d
	OpAstore3         byte = 0x4e
	OpIastore         byte = 0x4f
	OpLastore         byte = 0x50
	OpFastore         byte = 0x51
	OpDastore         byte = 0x52
	OpAastore         byte = 0x53
	OpBastore         byte = 0x54
	OpCastore         byte = 0x55
	OpSastore         byte = 0x56
	OpPop             byte = 0x57
	OpPop2            byte = 0x58
	OpDup             byte = 0x59
	OpDupX1           byte = 0x5a
	OpDupX2           byte = 0x5b
	OpDup2            byte = 0x5c
	OpDup2X1          byte = 0x5d
	OpDup2X2          byte = 0x5e
	OpSwap            byte = 0x5f
	OpIadd            byte = 0x60
	OpLadd            byte = 0x61
	OpFadd            byte = 0x62
	OpDadd            byte = 0x63
	OpIsub            byte = 0x64
	OpLsub            byte = 0x65
	OpFsub            byte = 0x66
	OpDsub            byte = 0x67
	OpImul            byte = 0x68
	OpLmul            byte = 0x69
	OpFmul            byte = 0x6a
	OpDmul            byte = 0x6b
	OpIdiv            byte = 0x6c
	OpLdiv            byte = 0x6d
	OpFdiv            byte = 0x6e
	OpDdiv            byte = 0x6f
	OpIrem            byte = 0x70
	OpLrem            byte = 0x71
	OpFrem            byte = 0x72
	OpDrem            byte = 0x73
	OpIneg            byte = 0x74
	OpLneg            byte = 0x75
	OpFneg            byte = 0x76
	OpDneg            byte = 0x77
	OpIshl            byte = 0x78
	OpLshl            byte = 0x79
	OpIshr            byte = 0x7a
	OpLshr            byte = 0x7b
	OpIushr           byte = 0x7c
	OpLushr           byte = 0x7d
	OpIand            byte = 0x7e
	OpLand            byte = 0x7f
	OpIor             byte = 0x80
	OpLor             byte = 0x81
	OpIxor            byte = 0x82
	OpLxor            byte = 0x83
	OpIinc            byte = 0x84
	OpI2l             byte = 0x85
	OpI2f             byte = 0x86
	OpI2d             byte = 0x87
	OpL2i             byte = 0x88
	OpL2f             byte = 0x89
	OpL2d             byte = 0x8a
	OpF2i             byte = 0x8b
	OpF2l             byte = 0x8c
	OpF2d             byte = 0x8d
	OpD2i             byte = 0x8e
	OpD2l             byte = 0x8f
	OpD2f             byte = 0x90
	OpI2b             byte = 0x91
	OpI2c             byte = 0x92
	OpI2s             byte = 0x93
	OpLcmp            byte = 0x94
	OpFcmpl           byte = 0x95
	OpFcmpg           byte = 0x96
	OpDcmpl           byte = 0x97
	OpDcmpg           byte = 0x98
	OpIfeq            byte = 0x99
	OpIfne            byte = 0x9a
	OpIflt            byte = 0x9b
	OpIfge            byte = 0x9c
	OpIfgt            byte = 0x9d
	OpIfle            byte = 0x9e
	OpIfIcmpeq        byte = 0x9f
	OpIfIcmpne        byte = 0xa0
	OpIfIcmplt        byte = 0xa1
	OpIfIcmpge        byte = 0xa2
	OpIfIcmpgt        byte = 0xa3
	OpIfIcmple        byte = 0xa4
	OpIfAcmpeq        byte = 0xa5
	OpIfAcmpne        byte = 0xa6
	OpGoto            byte = 0xa7
	OpJsr             byte = 0xa8
	OpRet             byte = 0xa9
	OpTableswitch     byte = 0xaa
	OpLookupswitch    byte = 0xab
	OpIreturn         byte = 0xac
	OpLreturn         byte = 0xad
	OpFreturn         byte = 0xae
	OpDreturn         byte = 0xaf
	OpAreturn         byte = 0xb0
	OpReturn          byte = 0xb1
	OpGetstatic       byte = 0xb2
	OpPutstatic       byte = 0xb3
	OpGetfield        byte = 0xb4
	OpPutfield        byte = 0xb5
	OpInvokevirtual   byte = 0xb6
	OpInvokespecial   byte = 0xb7
	OpInvokestatic    byte = 0xb8
	OpInvokeinterface byte = 0xb9
	OpInvokedynamic   byte = 0xba
	OpNew             byte = 0xbb
	OpNewarray        byte = 0xbc
	OpAnewarray       byte = 0xbd
	OpArraylength     byte = 0xbe
	OpAthrow          byte = 0xbf
	OpCheckcast       byte = 0xc0
	OpInstanceof      byte = 0xc1
	OpMonitorenter    byte = 0xc2
	OpMonitorexit     byte = 0xc3
	OpWide            byte = 0xc4
	OpMultianewarray  byte = 0xc5
	OpIfnull          byte = 0xc6
	OpIfnonnull       byte = 0xc7
	OpGotoW           byte = 0xc8
	OpJsrW            byte = 0xc9
	OpBreakpoint      byte = 0xca
)

var opNames = [256]string{
	OpNop:             "nop",
	OpAconstNull:      "aconst_null",
	OpIconstM1:        "iconst_m1",
	OpIconst0:         "iconst_0",
	OpIconst1:         "iconst_1",
	OpIconst2:         "iconst_2",
	OpIconst3:         "iconst_3",
	OpIconst4:         "iconst_4",
	OpIconst5:         "iconst_5",
	OpLconst0:         "lconst_0",
	OpLconst1:         "lconst_1",
	OpFconst0:         "fconst_0",
	OpFconst1:         "fconst_1",
	OpFconst2:         "fconst_2",
	OpDconst0:         "dconst_0",
	OpDconst1:         "dconst_1",
	OpBipush:          "bipush",
	OpSipush:          "sipush",
	OpLdc:             "ldc",
	OpLdcW:            "ldc_w",
	OpLdc2W:           "ldc2_w",
	OpIload:           "iload",
	OpLload:           "lload",
	OpFload:           "fload",
	OpDload:           "dload",
	OpAload:           "aload",
	OpIload0:          "iload_0",
	OpIload1:          "iload_1",
	OpIload2:          "iload_2",
	OpIload3:          "iload_3",
	OpLload0:          "lload_0",
	OpLload1:          "lload_1",
	OpLload2:          "lload_2",
	OpLload3:          "lload_3",
	OpFload0:          "fload_0",
	OpFload1:          "fload_1",
	OpFload2:          "fload_2",
	OpFload3:          "fload_3",
	OpDload0:          "dload_0",
	OpDload1:          "dload_1",
	OpDload2:          "dload_2",
	OpDload3:          "dload_3",
	OpAload0:          "aload_0",
	OpAload1:          "aload_1",
	OpAload2:          "aload_2",
	OpAload3:          "aload_3",
	OpIaload:          "iaload",
	OpLaload:          "laload",
	OpFaload:          "faload",
	OpDaload:          "daload",
	OpAaload:          "aaload",
	OpBaload:          "baload",
	OpCaload:          "caload",
	OpSaload:          "saload",
	OpIstore:          "istore",
	OpLstore:          "lstore",
	OpFstore:          "fstore",
	OpDstore:          "dstore",
	OpAstore:          "astore",
	OpIstore0:         "istore_0",
	OpIstore1:         "istore_1",
	OpIstore2:         "istore_2",
	OpIstore3:         "istore_3",
	OpLstore0:         "lstore_0",
	OpLstore1:         "lstore_1",
	OpLstore2:         "lstore_2",
	OpLstore3:         "lstore_3",
	OpFstore0:         "fstore_0",
	OpFstore1:         "fstore_1",
	OpFstore2:         "fstore_2",
	OpFstore3:         "fstore_3",
	OpDstore0:         "dstore_0",
	OpDstore1:         "dstore_1",
	OpDstore2:         "dstore_2",
	OpDstore3:         "dstore_3",
	OpAstore0:         "astore_0",
	OpAstore1:         "astore_1",
	OpAstore2:         "astore_2",
	OpAstore3:         "astore_3",
	OpIastore:         "iastore",
	OpLastore:         "lastore",
	OpFastore:         "fastore",
	OpDastore:         "dastore",
	OpAastore:         "aastore",
	OpBastore:         "bastore",
	OpCastore:         "castore",
	OpSastore:         "sastore",
	OpPop:             "pop",
	OpPop2:            "pop2",
	OpDup:             "dup",
	OpDupX1:           "dup_x1",
	OpDupX2:           "dup_x2",
	OpDup2:            "dup2",
	OpDup2X1:          "dup2_x1",
	OpDup2X2:          "dup2_x2",
	OpSwap:            "swap",
	OpIadd:            "iadd",
	OpLadd:            "ladd",
	OpFadd:            "fadd",
	OpDadd:            "dadd",
	OpIsub:            "isub",
	OpLsub:            "lsub",
	OpFsub:            "fsub",
	OpDsub:            "dsub",
	OpImul:            "imul",
	OpLmul:            "lmul",
	OpFmul:            "fmul",
	OpDmul:            "dmul",
	OpIdiv:            "idiv",
	OpLdiv:            "ldiv",
	OpFdiv:            "fdiv",
	OpDdiv:            "ddiv",
	OpIrem:            "irem",
	OpLrem:            "lrem",
	OpFrem:            "frem",
	OpDrem:            "drem",
	OpIneg:            "ineg",
	OpLneg:            "lneg",
	OpFneg:            "fneg",
	OpDneg:            "dneg",
	OpIshl:            "ishl",
	OpLshl:            "lshl",
	OpIshr:            "ishr",
	OpLshr:            "lshr",
	OpIushr:           "iushr",
	OpLushr:           "lushr",
	OpIand:            "iand",
	OpLand:            "land",
	OpIor:             "ior",
	OpLor:             "lor",
	OpIxor:            "ixor",
	OpLxor:            "lxor",
	OpIinc:            "iinc",
	OpI2l:             "i2l",
	OpI2f:             "i2f",
	OpI2d:             "i2d",
	OpL2i:             "l2i",
	OpL2f:             "l2f",
	OpL2d:             "l2d",
	OpF2i:             "f2i",
	OpF2l:             "f2l",
	OpF2d:             "f2d",
	OpD2i:             "d2i",
	OpD2l:             "d2l",
	OpD2f:             "d2f",
	OpI2b:             "i2b",
	OpI2c:             "i2c",
	OpI2s:             "i2s",
	OpLcmp:            "lcmp",
	OpFcmpl:           "fcmpl",
	OpFcmpg:           "fcmpg",
	OpDcmpl:           "dcmpl",
	OpDcmpg:           "dcmpg",
	OpIfeq:            "ifeq",
	OpIfne:            "ifne",
	OpIflt:            "iflt",
	OpIfge:            "ifge",
	OpIfgt:            "ifgt",
	OpIfle:            "ifle",
	OpIfIcmpeq:        "if_icmpeq",
	OpIfIcmpne:        "if_icmpne",
	OpIfIcmplt:        "if_icmplt",
	OpIfIcmpge:        "if_icmpge",
	OpIfIcmpgt:        "if_icmpgt",
	OpIfIcmple:        "if_icmple",
	OpIfAcmpeq:        "if_acmpeq",
	OpIfAcmpne:        "if_acmpne",
	OpGoto:            "goto",
	OpJsr:             "jsr",
	OpRet:             "ret",
	OpTableswitch:     "tableswitch",
	OpLookupswitch:    "lookupswitch",
	OpIreturn:         "ireturn",
	OpLreturn:         "lreturn",
	OpFreturn:         "freturn",
	OpDreturn:         "dreturn",
	OpAreturn:         "areturn",
	OpReturn:          "return",
	OpGetstatic:       "getstatic",
	OpPutstatic:       "putstatic",
	OpGetfield:        "getfield",
	OpPutfield:        "putfield",
	OpInvokevirtual:   "invokevirtual",
	OpInvokespecial:   "invokespecial",
	OpInvokestatic:    "invokestatic",
	OpInvokeinterface: "invokeinterface",
	OpInvokedynamic:   "invokedynamic",
	OpNew:             "new",
	OpNewarray:        "newarray",
	OpAnewarray:       "anewarray",
	OpArraylength:     "arraylength",
	OpAthrow:          "athrow",
	OpCheckcast:       "checkcast",
	OpInstanceof:      "instanceof",
	OpMonitorenter:    "monitorenter",
	OpMonitorexit:     "monitorexit",
	OpWide:            "wide",
	OpMultianewarray:  "multianewarray",
	OpIfnull:          "ifnull",
	OpIfnonnull:       "ifnonnull",
	OpGotoW:           "goto_w",
	OpJsrW:            "jsr_w",
	OpBreakpoint:      "breakpoint",
}

// opWidths holds the fixed operand byte count of each opcode; -1 marks
// variable-length instructions.
var opWidths = [256]int8{
	OpBipush:          1,
	OpSipush:          2,
	OpLdc:             1,
	OpLdcW:            2,
	OpLdc2W:           2,
	OpIload:           1,
	OpLload:           1,
	OpFload:           1,
	OpDload:           1,
	OpAload:           1,
	OpIstore:          1,
	OpLstore:          1,
	OpFstore:          1,
	OpDstore:          1,
	OpAstore:          1,
	OpIinc:            2,
	OpIfeq:            2,
	OpIfne:            2,
	OpIflt:            2,
	OpIfge:            2,
	OpIfgt:            2,
	OpIfle:            2,
	OpIfIcmpeq:        2,
	OpIfIcmpne:        2,
	OpIfIcmplt:        2,
	OpIfIcmpge:        2,
	OpIfIcmpgt:        2,
	OpIfIcmple:        2,
	OpIfAcmpeq:        2,
	OpIfAcmpne:        2,
	OpGoto:            2,
	OpJsr:             2,
	OpRet:             1,
	OpTableswitch:     -1,
	OpLookupswitch:    -1,
	OpGetstatic:       2,
	OpPutstatic:       2,
	OpGetfield:        2,
	OpPutfield:        2,
	OpInvokevirtual:   2,
	OpInvokespecial:   2,
	OpInvokestatic:    2,
	OpInvokeinterface: 4,
	OpInvokedynamic:   4,
	OpNew:             2,
	OpNewarray:        1,
	OpAnewarray:       2,
	OpCheckcast:       2,
	OpInstanceof:      2,
	OpWide:            -1,
	OpMultianewarray:  3,
	OpIfnull:          2,
	OpIfnonnull:       2,
	OpGotoW:           4,
	OpJsrW:            4,
}

// opKnown marks assigned opcodes.
var opKnown = [256]bool{
	OpNop:             true,
	OpAconstNull:      true,
	OpIconstM1:        true,
	OpIconst0:         true,
	OpIconst1:         true,
	OpIconst2:         true,
	OpIconst3:         true,
	OpIconst4:         true,
	OpIconst5:         true,
	OpLconst0:         true,
	OpLconst1:         true,
	OpFconst0:         true,
	OpFconst1:         true,
	OpFconst2:         true,
	OpDconst0:         true,
	OpDconst1:         true,
	OpBipush:          true,
	OpSipush:          true,
	OpLdc:             true,
	OpLdcW:            true,
	OpLdc2W:           true,
	OpIload:           true,
	OpLload:           true,
	OpFload:           true,
	OpDload:           true,
	OpAload:           true,
	OpIload0:          true,
	OpIload1:          true,
	OpIload2:          true,
	OpIload3:          true,
	OpLload0:          true,
	OpLload1:          true,
	OpLload2:          true,
	OpLload3:          true,
	OpFload0:          true,
	OpFload1:          true,
	OpFload2:          true,
	OpFload3:          true,
	OpDload0:          true,
	OpDload1:          true,
	OpDload2:          true,
	OpDload3:          true,
	OpAload0:          true,
	OpAload1:          true,
	OpAload2:          true,
	OpAload3:          true,
	OpIaload:          true,
	OpLaload:          true,
	OpFaload:          true,
	OpDaload:          true,
	OpAaload:          true,
	OpBaload:          true,
	OpCaload:          true,
	OpSaload:          true,
	OpIstore:          true,
	OpLstore:          true,
	OpFstore:          true,
	OpDstore:          true,
	OpAstore:          true,
	OpIstore0:         true,
	OpIstore1:         true,
	OpIstore2:         true,
	OpIstore3:         true,
	OpLstore0:         true,
	OpLstore1:         true,
	OpLstore2:         true,
	OpLstore3:         true,
	OpFstore0:         true,
	OpFstore1:         true,
	OpFstore2:         true,
	OpFstore3:         true,
	OpDstore0:         true,
	OpDstore1:         true,
	OpDstore2:         true,
	OpDstore3:         true,
	OpAstore0:         true,
	OpAstore1:         true,
	OpAstore2:         true,
	OpAstore3:         true,
	OpIastore:         true,
	OpLastore:         true,
	OpFastore:         true,
	OpDastore:         true,
	OpAastore:         true,
	OpBastore:         true,
	OpCastore:         true,
	OpSastore:         true,
	OpPop:             true,
	OpPop2:            true,
	OpDup:             true,
	OpDupX1:           true,
	OpDupX2:           true,
	OpDup2:            true,
	OpDup2X1:          true,
	OpDup2X2:          true,
	OpSwap:            true,
	OpIadd:            true,
	OpLadd:            true,
	OpFadd:            true,
	OpDadd:            true,
	OpIsub:            true,
	OpLsub:            true,
	OpFsub:            true,
	OpDsub:            true,
	OpImul:            true,
	OpLmul:            true,
	OpFmul:            true,
	OpDmul:            true,
	OpIdiv:            true,
	OpLdiv:            true,
	OpFdiv:            true,
	OpDdiv:            true,
	OpIrem:            true,
	OpLrem:            true,
	OpFrem:            true,
	OpDrem:            true,
	OpIneg:            true,
	OpLneg:            true,
	OpFneg:            true,
	OpDneg:            true,
	OpIshl:            true,
	OpLshl:            true,
	OpIshr:            true,
	OpLshr:            true,
	OpIushr:           true,
	OpLushr:           true,
	OpIand:            true,
	OpLand:            true,
	OpIor:             true,
	OpLor:             true,
	OpIxor:            true,
	OpLxor:            true,
	OpIinc:            true,
	OpI2l:             true,
	OpI2f:             true,
	OpI2d:             true,
	OpL2i:             true,
	OpL2f:             true,
	OpL2d:             true,
	OpF2i:             true,
	OpF2l:             true,
	OpF2d:             true,
	OpD2i:             true,
	OpD2l:             true,
	OpD2f:             true,
	OpI2b:             true,
	OpI2c:             true,
	OpI2s:             true,
	OpLcmp:            true,
	OpFcmpl:           true,
	OpFcmpg:           true,
	OpDcmpl:           true,
	OpDcmpg:           true,
	OpIfeq:            true,
	OpIfne:            true,
	OpIflt:            true,
	OpIfge:            true,
	OpIfgt:            true,
	OpIfle:            true,
	OpIfIcmpeq:        true,
	OpIfIcmpne:        true,
	OpIfIcmplt:        true,
	OpIfIcmpge:        true,
	OpIfIcmpgt:        true,
	OpIfIcmple:        true,
	OpIfAcmpeq:        true,
	OpIfAcmpne:        true,
	OpGoto:            true,
	OpJsr:             true,
	OpRet:             true,
	OpTableswitch:     true,
	OpLookupswitch:    true,
	OpIreturn:         true,
	OpLreturn:         true,
	OpFreturn:         true,
	OpDreturn:         true,
	OpAreturn:         true,
	OpReturn:          true,
	OpGetstatic:       true,
	OpPutstatic:       true,
	OpGetfield:        true,
	OpPutfield:        true,
	OpInvokevirtual:   true,
	OpInvokespecial:   true,
	OpInvokestatic:    true,
	OpInvokeinterface: true,
	OpInvokedynamic:   true,
	OpNew:             true,
	OpNewarray:        true,
	OpAnewarray:       true,
	OpArraylength:     true,
	OpAthrow:          true,
	OpCheckcast:       true,
	OpInstanceof:      true,
	OpMonitorenter:    true,
	OpMonitorexit:     true,
	OpWide:            true,
	OpMultianewarray:  true,
	OpIfnull:          true,
	OpIfnonnull:       true,
	OpGotoW:           true,
	OpJsrW:            true,
	OpBreakpoint:      true,
}
