package debugdump

import (
	"encoding/binary"
	"fmt"
	"net"
	"os"
)

const (
	defaultSrcIP   = "192.168.1.100"
	defaultDstIP   = "192.168.1.101"
	defaultSrcPort = 12345
	defaultDstPort = 4433

	ethHeaderLen = 14
	ipHeaderLen  = 20
	tcpHeaderLen = 20

	tcpFlagPush = 0x08
	tcpFlagAck  = 0x10
)

// PcapWriter assembles a synthetic Ethernet/IP/TCP stream between a fixed
// client and server endpoint, wrapping one byte slice per packet, and
// emits it as a classic (non-pcapng) pcap capture file.
type PcapWriter struct {
	srcIP, dstIP     net.IP
	srcPort, dstPort uint16
	clientSeq        uint32
	serverSeq        uint32
	timestampSec     uint32
	timestampUsec    uint32
}

// NewPcapWriter creates a PcapWriter using the fixed client/server
// endpoints every debug capture in a session shares.
func NewPcapWriter() *PcapWriter {
	return &PcapWriter{
		srcIP:   net.ParseIP(defaultSrcIP).To4(),
		dstIP:   net.ParseIP(defaultDstIP).To4(),
		srcPort: defaultSrcPort,
		dstPort: defaultDstPort,
	}
}

// WriteSessionPcap writes a pcap file at path capturing responses[0] as
// the pre-run server message followed by each (client message, server
// response) pair in order. responses must have len(messages)+1 entries,
// matching WriteSessionLog's convention.
func (w *PcapWriter) WriteSessionPcap(path string, messages [][]byte, responses [][]byte) error {
	if len(responses) != len(messages)+1 {
		return fmt.Errorf("debugdump: responses must have len(messages)+1 entries, got %d for %d messages", len(responses), len(messages))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create pcap file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(w.globalHeader()); err != nil {
		return fmt.Errorf("write pcap global header: %w", err)
	}

	if err := w.writePacket(f, responses[0], false); err != nil {
		return err
	}
	for i, msg := range messages {
		if err := w.writePacket(f, msg, true); err != nil {
			return err
		}
		if err := w.writePacket(f, responses[i+1], false); err != nil {
			return err
		}
	}
	return nil
}

// globalHeader returns the 24-byte classic pcap file header: magic
// number, version 2.4, zeroed timezone/accuracy, max snap length, and
// Ethernet link-layer type.
func (w *PcapWriter) globalHeader() []byte {
	h := make([]byte, 24)
	binary.LittleEndian.PutUint32(h[0:4], 0xa1b2c3d4)
	binary.LittleEndian.PutUint16(h[4:6], 2)
	binary.LittleEndian.PutUint16(h[6:8], 4)
	binary.LittleEndian.PutUint32(h[16:20], 65535)
	binary.LittleEndian.PutUint32(h[20:24], 1) // LINKTYPE_ETHERNET
	return h
}

func (w *PcapWriter) writePacket(f *os.File, payload []byte, fromClient bool) error {
	frame := w.ethernetFrame(payload, fromClient)

	rec := make([]byte, 16)
	binary.LittleEndian.PutUint32(rec[0:4], w.timestampSec)
	binary.LittleEndian.PutUint32(rec[4:8], w.timestampUsec)
	binary.LittleEndian.PutUint32(rec[8:12], uint32(len(frame)))
	binary.LittleEndian.PutUint32(rec[12:16], uint32(len(frame)))

	if _, err := f.Write(rec); err != nil {
		return fmt.Errorf("write pcap record header: %w", err)
	}
	if _, err := f.Write(frame); err != nil {
		return fmt.Errorf("write pcap frame: %w", err)
	}

	w.advanceSeq(payload, fromClient)
	w.timestampUsec += 200000
	if w.timestampUsec >= 1000000 {
		w.timestampSec += w.timestampUsec / 1000000
		w.timestampUsec %= 1000000
	}
	return nil
}

func (w *PcapWriter) advanceSeq(payload []byte, fromClient bool) {
	if fromClient {
		w.clientSeq += uint32(len(payload))
	} else {
		w.serverSeq += uint32(len(payload))
	}
}

// ethernetFrame wraps payload in a TCP segment, an IPv4 datagram, and a
// zeroed-MAC Ethernet header, with source and destination swapped for
// server-to-client packets so the capture reads as one bidirectional flow.
func (w *PcapWriter) ethernetFrame(payload []byte, fromClient bool) []byte {
	srcIP, dstIP := w.srcIP, w.dstIP
	srcPort, dstPort := w.srcPort, w.dstPort
	seq, ack := w.clientSeq, w.serverSeq
	if !fromClient {
		srcIP, dstIP = w.dstIP, w.srcIP
		srcPort, dstPort = w.dstPort, w.srcPort
		seq, ack = w.serverSeq, w.clientSeq
	}

	tcp := make([]byte, tcpHeaderLen+len(payload))
	binary.BigEndian.PutUint16(tcp[0:2], srcPort)
	binary.BigEndian.PutUint16(tcp[2:4], dstPort)
	binary.BigEndian.PutUint32(tcp[4:8], seq)
	binary.BigEndian.PutUint32(tcp[8:12], ack)
	tcp[12] = (tcpHeaderLen / 4) << 4
	tcp[13] = tcpFlagPush | tcpFlagAck
	binary.BigEndian.PutUint16(tcp[14:16], 65535)
	copy(tcp[tcpHeaderLen:], payload)

	ip := make([]byte, ipHeaderLen+len(tcp))
	ip[0] = 0x45
	binary.BigEndian.PutUint16(ip[2:4], uint16(len(ip)))
	ip[8] = 64
	ip[9] = 6 // IPPROTO_TCP
	copy(ip[12:16], srcIP)
	copy(ip[16:20], dstIP)
	copy(ip[ipHeaderLen:], tcp)

	eth := make([]byte, ethHeaderLen+len(ip))
	binary.BigEndian.PutUint16(eth[12:14], 0x0800) // EtherType IPv4
	copy(eth[ethHeaderLen:], ip)

	return eth
}
