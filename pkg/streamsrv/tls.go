package streamsrv

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"log"
	"math/big"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/caddyserver/certmagic"
)

// TLSConfig selects how StartTLS terminates TLS for a Server. Grounded
// on the teacher's TLSConfig/TLSServer, generalized from "VibeTunnel
// web UI" to "this engine's WebSocket/SSE endpoints."
type TLSConfig struct {
	Enabled      bool
	Domain       string // non-empty selects certmagic's automatic ACME certificates
	SelfSigned   bool
	CertPath     string
	KeyPath      string
	AutoRedirect bool
	RedirectPort int
}

// StartTLS serves s's router over httpsAddr according to cfg, starting
// an HTTP->HTTPS redirect listener on httpAddr when cfg.AutoRedirect is
// set. Falls back to plain HTTP if TLS is disabled.
func (s *Server) StartTLS(cfg TLSConfig, httpAddr, httpsAddr string) error {
	if !cfg.Enabled {
		return s.Start(httpAddr)
	}

	tlsConfig, err := setupTLS(cfg)
	if err != nil {
		return fmt.Errorf("setup TLS: %w", err)
	}

	httpsServer := &http.Server{
		Addr:         httpsAddr,
		Handler:      s.router,
		TLSConfig:    tlsConfig,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if cfg.AutoRedirect && httpAddr != "" {
		go startHTTPRedirect(httpAddr, cfg.RedirectPort)
	}

	log.Printf("[streamsrv] starting HTTPS server on %s", httpsAddr)
	if cfg.SelfSigned || (cfg.CertPath != "" && cfg.KeyPath != "") {
		return httpsServer.ListenAndServeTLS(cfg.CertPath, cfg.KeyPath)
	}
	return httpsServer.ListenAndServeTLS("", "")
}

func setupTLS(cfg TLSConfig) (*tls.Config, error) {
	switch {
	case cfg.SelfSigned:
		return setupSelfSignedTLS()
	case cfg.CertPath != "" && cfg.KeyPath != "":
		return setupCustomCertTLS(cfg.CertPath, cfg.KeyPath)
	case cfg.Domain != "":
		return setupCertMagicTLS(cfg.Domain)
	default:
		return setupSelfSignedTLS()
	}
}

func setupSelfSignedTLS() (*tls.Config, error) {
	cert, err := generateSelfSignedCert()
	if err != nil {
		return nil, fmt.Errorf("generate self-signed certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ServerName:   "localhost",
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func setupCustomCertTLS(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load custom certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func setupCertMagicTLS(domain string) (*tls.Config, error) {
	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = "admin@" + domain
	certmagic.Default.Storage = &certmagic.FileStorage{
		Path: filepath.Join("/tmp", "vtengine-certs"),
	}

	if err := certmagic.ManageSync(context.Background(), []string{domain}); err != nil {
		return nil, fmt.Errorf("obtain certificate for domain %s: %w", domain, err)
	}
	return certmagic.TLS([]string{domain})
}

func generateSelfSignedCert() (tls.Certificate, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate private key: %w", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"vtengine"}},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:     []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create certificate: %w", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	keyDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("marshal private key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})

	return tls.X509KeyPair(certPEM, keyPEM)
}

func startHTTPRedirect(httpAddr string, httpsPort int) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.Host)
		if err != nil {
			host = r.Host
		}
		if httpsPort != 0 && httpsPort != 443 {
			host = fmt.Sprintf("%s:%d", host, httpsPort)
		}
		http.Redirect(w, r, fmt.Sprintf("https://%s%s", host, r.RequestURI), http.StatusPermanentRedirect)
	})

	server := &http.Server{Addr: httpAddr, Handler: handler}
	log.Printf("[streamsrv] starting HTTP redirect server on %s -> HTTPS", httpAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("[streamsrv] HTTP redirect server error: %v", err)
	}
}
